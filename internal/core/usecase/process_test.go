package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

type statusCall struct {
	status domain.SourceStatus
	errMsg string
}

type processRepoFake struct {
	src           *domain.SourceFile
	getErr        error
	countErr      error
	failStatusErr error
	statusCalls   []statusCall
	savedCount    int
}

func (f *processRepoFake) Create(context.Context, *domain.SourceFile) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.SourceFile, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copySrc := *f.src
	return &copySrc, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.SourceStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	return nil
}

func (f *processRepoFake) SaveRecordCount(_ context.Context, _ string, count int) error {
	if f.countErr != nil {
		return f.countErr
	}
	f.savedCount = count
	return nil
}

type extractorFake struct {
	records []domain.SourceRecord
	err     error
}

func (f *extractorFake) Extract(context.Context, *domain.SourceFile) ([]domain.SourceRecord, error) {
	return f.records, f.err
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type batchEmbedderFake struct {
	batches [][]string
	err     error
	short   bool
}

func (f *batchEmbedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, texts)
	n := len(texts)
	if f.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{1, 2, 3, 4}
	}
	return out, nil
}

func (f *batchEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return nil, nil }

type indexerFake struct {
	ensured     []string
	vectorSize  int
	upserts     [][]domain.IndexPoint
	collections []string
	err         error
}

func (f *indexerFake) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	f.ensured = append(f.ensured, collection)
	f.vectorSize = vectorSize
	return nil
}

func (f *indexerFake) Upsert(_ context.Context, collection string, points []domain.IndexPoint) error {
	if f.err != nil {
		return f.err
	}
	f.collections = append(f.collections, collection)
	f.upserts = append(f.upserts, points)
	return nil
}

func orderRecords(n int) []domain.SourceRecord {
	out := make([]domain.SourceRecord, 0, n)
	for i := range n {
		out = append(out, domain.SourceRecord{
			"order_id":       "ord" + strings.Repeat("1", i+1),
			"order_status":   "Shipped",
			"payment_status": "Paid",
			"user_id":        "U1",
		})
	}
	return out
}

func TestProcessByIDSuccessInBatches(t *testing.T) {
	repo := &processRepoFake{src: &domain.SourceFile{ID: "src-1", Domain: domain.DomainOrders}}
	embedder := &batchEmbedderFake{}
	indexer := &indexerFake{}
	uc := NewProcessSourceUseCase(repo, &extractorFake{records: orderRecords(5)}, nil, embedder, indexer, 2)

	if err := uc.ProcessByID(context.Background(), "src-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusReady {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.savedCount != 5 {
		t.Fatalf("expected record count 5, got %d", repo.savedCount)
	}
	if len(embedder.batches) != 3 || len(indexer.upserts) != 3 {
		t.Fatalf("expected 3 batches, got embed=%d upsert=%d", len(embedder.batches), len(indexer.upserts))
	}
	if len(indexer.ensured) != 1 || indexer.ensured[0] != "orders_collection" || indexer.vectorSize != 4 {
		t.Fatalf("unexpected ensure calls %v size=%d", indexer.ensured, indexer.vectorSize)
	}
	first := indexer.upserts[0][0]
	if first.Payload["order_id"] != "ORD1" || first.Payload["source_id"] != "src-1" {
		t.Fatalf("unexpected payload: %+v", first.Payload)
	}
	if first.ID == "" {
		t.Fatalf("point id must be set")
	}
	if !strings.HasPrefix(embedder.batches[0][0], "Order ORD1 placed on") {
		t.Fatalf("unexpected embedded text %q", embedder.batches[0][0])
	}
}

func TestProcessByIDSplitsPolicyText(t *testing.T) {
	repo := &processRepoFake{src: &domain.SourceFile{
		ID: "src-2", Domain: domain.DomainPolicies, PolicyType: "refund", PolicyID: "POL001",
	}}
	indexer := &indexerFake{}
	uc := NewProcessSourceUseCase(
		repo,
		&extractorFake{records: []domain.SourceRecord{{"title": "Refund Policy", "text": "long text"}}},
		&chunkerFake{chunks: []string{"part one", "part two"}},
		&batchEmbedderFake{},
		indexer,
		0,
	)

	if err := uc.ProcessByID(context.Background(), "src-2"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if repo.savedCount != 2 {
		t.Fatalf("expected 2 passages, got %d", repo.savedCount)
	}
	points := indexer.upserts[0]
	if points[1].Payload["text"] != "part two" || points[1].Payload["chunk_index"] != 1 {
		t.Fatalf("unexpected passage payload: %+v", points[1].Payload)
	}
	if points[0].Payload["policy_type"] != "refund" || points[0].Payload["policy_id"] != "POL001" {
		t.Fatalf("source policy metadata not applied: %+v", points[0].Payload)
	}
	if indexer.collections[0] != "policies_collection" {
		t.Fatalf("unexpected collection %s", indexer.collections[0])
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{src: &domain.SourceFile{ID: "src-1", Domain: domain.DomainProducts}}
	uc := NewProcessSourceUseCase(repo, &extractorFake{err: errors.New("bad xlsx")}, nil, &batchEmbedderFake{}, &indexerFake{}, 10)

	err := uc.ProcessByID(context.Background(), "src-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed || !strings.Contains(last.errMsg, "bad xlsx") {
		t.Fatalf("expected failed status with message, got %+v", last)
	}
}

func TestProcessByIDFailsOnEmptySource(t *testing.T) {
	repo := &processRepoFake{src: &domain.SourceFile{ID: "src-1", Domain: domain.DomainProducts}}
	uc := NewProcessSourceUseCase(repo, &extractorFake{}, nil, &batchEmbedderFake{}, &indexerFake{}, 10)

	err := uc.ProcessByID(context.Background(), "src-1")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestProcessByIDFailsOnVectorMismatch(t *testing.T) {
	repo := &processRepoFake{src: &domain.SourceFile{ID: "src-1", Domain: domain.DomainOrders}}
	indexer := &indexerFake{}
	uc := NewProcessSourceUseCase(repo, &extractorFake{records: orderRecords(2)}, nil, &batchEmbedderFake{short: true}, indexer, 10)

	if err := uc.ProcessByID(context.Background(), "src-1"); err == nil {
		t.Fatalf("expected mismatch error")
	}
	if len(indexer.upserts) != 0 {
		t.Fatalf("nothing should be upserted on mismatch")
	}
}

func TestProcessByIDReturnsMarkFailedError(t *testing.T) {
	repo := &processRepoFake{
		src:           &domain.SourceFile{ID: "src-1", Domain: domain.DomainOrders},
		failStatusErr: errors.New("db down"),
	}
	uc := NewProcessSourceUseCase(repo, &extractorFake{records: orderRecords(1)}, nil, &batchEmbedderFake{}, &indexerFake{err: errors.New("qdrant down")}, 10)

	err := uc.ProcessByID(context.Background(), "src-1")
	if err == nil || !strings.Contains(err.Error(), "qdrant down") || !strings.Contains(err.Error(), "mark failed status") {
		t.Fatalf("expected combined error, got %v", err)
	}
}
