package ports

import (
	"context"
	"io"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// ContextRetriever is the inbound contract of the retrieval engine.
type ContextRetriever interface {
	Aggregate(ctx context.Context, req domain.RetrieveRequest) domain.AggregatedContext
}

// IntentDetector maps a query to its ordered domain set.
type IntentDetector interface {
	Detect(query string) []domain.Domain
}

// QuestionAnswerer is the inbound contract for retrieval plus answer generation.
type QuestionAnswerer interface {
	Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error)
}

// SourceIngestor is the inbound contract for source upload orchestration.
type SourceIngestor interface {
	Upload(ctx context.Context, meta domain.UploadSource, body io.Reader) (*domain.SourceFile, error)
}

// SourceReader is the inbound read model for ingestion state.
type SourceReader interface {
	GetByID(ctx context.Context, id string) (*domain.SourceFile, error)
}

// SourceProcessor is the inbound contract for asynchronous source processing.
type SourceProcessor interface {
	ProcessByID(ctx context.Context, sourceID string) error
}
