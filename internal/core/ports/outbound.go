package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// Embedder builds vectors for records and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the read side of the vector index. Lookup reports an absent
// point with domain.ErrRecordNotFound, distinct from a failed call.
type VectorStore interface {
	Lookup(ctx context.Context, collection string, filter domain.Filter) (domain.StoredPoint, error)
	Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.StoredPoint, error)
	Search(ctx context.Context, collection string, vector []float32, limit int, filter domain.Filter) ([]domain.ScoredPoint, error)
}

// VectorIndexer is the write side used by ingestion only.
type VectorIndexer interface {
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []domain.IndexPoint) error
}

// AnswerGenerator turns aggregated evidence into a user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, evidence domain.AggregatedContext) (string, error)
}

// EventSink records query audit events.
type EventSink interface {
	RecordQueryEvent(ctx context.Context, event domain.QueryEvent) error
}

// RetrievalObserver receives per-domain and aggregate retrieval signals.
type RetrievalObserver interface {
	ObserveOutcome(outcome domain.RetrievalOutcome, duration time.Duration)
	ObserveAggregate(result domain.AggregatedContext)
}

// SourceRepository persists ingestion source state.
type SourceRepository interface {
	Create(ctx context.Context, src *domain.SourceFile) error
	GetByID(ctx context.Context, id string) (*domain.SourceFile, error)
	UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, errMessage string) error
	SaveRecordCount(ctx context.Context, id string, count int) error
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes source ingestion events.
type MessageQueue interface {
	PublishSourceIngested(ctx context.Context, sourceID string) error
	SubscribeSourceIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// RecordExtractor turns a stored source file into records.
type RecordExtractor interface {
	Extract(ctx context.Context, src *domain.SourceFile) ([]domain.SourceRecord, error)
}

// Chunker splits long policy text into passages.
type Chunker interface {
	Split(text string) []string
}
