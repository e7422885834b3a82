package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

const defaultIngestBatchSize = 50

type ProcessSourceUseCase struct {
	repo      ports.SourceRepository
	extractor ports.RecordExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	indexer   ports.VectorIndexer
	batchSize int
}

func NewProcessSourceUseCase(
	repo ports.SourceRepository,
	extractor ports.RecordExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	indexer ports.VectorIndexer,
	batchSize int,
) *ProcessSourceUseCase {
	if batchSize <= 0 {
		batchSize = defaultIngestBatchSize
	}
	return &ProcessSourceUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		indexer:   indexer,
		batchSize: batchSize,
	}
}

func (uc *ProcessSourceUseCase) ProcessByID(ctx context.Context, sourceID string) error {
	if err := uc.markStatus(ctx, sourceID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	count, err := uc.processPipeline(ctx, sourceID)
	if err != nil {
		if failErr := uc.markFailed(ctx, sourceID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.SaveRecordCount(ctx, sourceID, count); err != nil {
		if failErr := uc.markFailed(ctx, sourceID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return fmt.Errorf("save record count: %w", err)
	}

	if err := uc.markStatus(ctx, sourceID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessSourceUseCase) processPipeline(ctx context.Context, sourceID string) (int, error) {
	src, err := uc.repo.GetByID(ctx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("fetch source by id: %w", err)
	}

	records, err := uc.extractor.Extract(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("extract records: %w", err)
	}
	records = uc.prepare(src, records)
	if len(records) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "extract records", errors.New("source produced zero records"))
	}

	collection := src.Domain.Collection()
	ensured := false
	for start := 0; start < len(records); start += uc.batchSize {
		end := min(start+uc.batchSize, len(records))
		batch := records[start:end]

		texts := make([]string, 0, len(batch))
		for _, rec := range batch {
			texts = append(texts, renderRecordText(src.Domain, rec))
		}

		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed records: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, domain.WrapError(
				domain.ErrInvalidInput,
				"embed records",
				fmt.Errorf("vectors/records mismatch: %d/%d", len(vectors), len(batch)),
			)
		}

		if !ensured {
			if err := uc.indexer.EnsureCollection(ctx, collection, len(vectors[0])); err != nil {
				return 0, fmt.Errorf("ensure collection %s: %w", collection, err)
			}
			ensured = true
		}

		points := make([]domain.IndexPoint, 0, len(batch))
		for i, rec := range batch {
			points = append(points, domain.IndexPoint{
				ID:      uuid.NewString(),
				Vector:  vectors[i],
				Payload: map[string]any(rec),
			})
		}
		if err := uc.indexer.Upsert(ctx, collection, points); err != nil {
			return 0, fmt.Errorf("upsert batch %d: %w", start/uc.batchSize+1, err)
		}
		slog.Info("source_batch_indexed",
			"source_id", src.ID,
			"collection", collection,
			"batch", start/uc.batchSize+1,
			"records", len(points),
		)
	}
	return len(records), nil
}

// prepare stamps source metadata and splits long policy documents into
// passages.
func (uc *ProcessSourceUseCase) prepare(src *domain.SourceFile, records []domain.SourceRecord) []domain.SourceRecord {
	out := make([]domain.SourceRecord, 0, len(records))
	for _, rec := range records {
		rec = maps.Clone(rec)
		if rec == nil {
			continue
		}
		rec["source_id"] = src.ID
		normalizeIdentifiers(src, rec)

		if src.Domain != domain.DomainPolicies || uc.chunker == nil {
			out = append(out, rec)
			continue
		}
		text := field(rec, "text")
		if text == "" {
			out = append(out, rec)
			continue
		}
		for idx, passage := range uc.chunker.Split(text) {
			chunk := maps.Clone(rec)
			chunk["text"] = passage
			chunk["chunk_index"] = idx
			out = append(out, chunk)
		}
	}
	return out
}

func normalizeIdentifiers(src *domain.SourceFile, rec domain.SourceRecord) {
	switch src.Domain {
	case domain.DomainOrders:
		upperField(rec, "order_id")
	case domain.DomainProducts:
		upperField(rec, "product_id")
	case domain.DomainPolicies:
		if field(rec, "policy_id") == "" && src.PolicyID != "" {
			rec["policy_id"] = src.PolicyID
		}
		if field(rec, "policy_type") == "" && src.PolicyType != "" {
			rec["policy_type"] = src.PolicyType
		}
		upperField(rec, "policy_id")
		if v := field(rec, "policy_type"); v != "" {
			rec["policy_type"] = strings.ToLower(v)
		}
	}
}

func upperField(rec domain.SourceRecord, key string) {
	if v := field(rec, key); v != "" {
		rec[key] = strings.ToUpper(v)
	}
}

func (uc *ProcessSourceUseCase) markStatus(ctx context.Context, sourceID string, status domain.SourceStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, sourceID, status, errMessage)
}

func (uc *ProcessSourceUseCase) markFailed(ctx context.Context, sourceID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, sourceID, domain.StatusFailed, processErr.Error())
}
