package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

type AskUseCase struct {
	retriever ports.ContextRetriever
	generator ports.AnswerGenerator
	events    ports.EventSink
	now       func() time.Time
}

// NewAskUseCase accepts a nil generator; Ask then fails with
// domain.ErrNotConfigured instead of the service refusing to start.
func NewAskUseCase(
	retriever ports.ContextRetriever,
	generator ports.AnswerGenerator,
	events ports.EventSink,
) *AskUseCase {
	return &AskUseCase{
		retriever: retriever,
		generator: generator,
		events:    events,
		now:       time.Now,
	}
}

func (uc *AskUseCase) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	start := uc.now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ask", errors.New("query is required"))
	}
	if uc.generator == nil {
		return nil, domain.WrapError(domain.ErrNotConfigured, "ask", errors.New("answer generator is not configured"))
	}

	aggregated := uc.retriever.Aggregate(ctx, domain.RetrieveRequest{
		Query:  query,
		UserID: req.UserID,
		Limit:  req.Limit,
	})
	invoked := invokedDomains(aggregated)
	sources := domain.Collections(invoked)

	answer, err := uc.generator.GenerateAnswer(ctx, query, aggregated)
	latency := uc.now().Sub(start).Milliseconds()
	if err != nil {
		uc.record(ctx, query, aggregated.Intents, sources, domain.EventStatusError, latency)
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	uc.record(ctx, query, aggregated.Intents, sources, domain.EventStatusSuccess, latency)

	return &domain.AskResult{
		Answer:         answer,
		Intents:        aggregated.Intents,
		Sources:        sources,
		Confidence:     aggregated.Confidence,
		Faithfulness:   aggregated.Faithfulness,
		RetrievalTypes: aggregated.RetrievalTypes,
		LatencyMS:      latency,
		Context:        aggregated,
	}, nil
}

// record never fails the request; sink errors are only logged.
func (uc *AskUseCase) record(ctx context.Context, query string, intents []domain.Domain, sources []string, status string, latency int64) {
	event := domain.QueryEvent{
		ID:        NewEventID(),
		Timestamp: uc.now().UTC(),
		Query:     query,
		Intents:   intents,
		Sources:   sources,
		Status:    status,
		LatencyMS: latency,
	}
	slog.Info("query_event",
		"log_id", event.ID,
		"intents", event.Intents,
		"sources", event.Sources,
		"status", event.Status,
		"latency_ms", event.LatencyMS,
	)
	if uc.events == nil {
		return
	}
	if err := uc.events.RecordQueryEvent(ctx, event); err != nil {
		slog.Warn("query_event_record_failed", "log_id", event.ID, "error", err)
	}
}

// NewEventID returns LOG followed by six upper-case hex characters.
func NewEventID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LOG" + strings.ToUpper(raw[:6])
}

// invokedDomains lists the domains that were queried, in priority order.
func invokedDomains(aggregated domain.AggregatedContext) []domain.Domain {
	out := make([]domain.Domain, 0, len(aggregated.Debug))
	for _, d := range domain.AllDomains() {
		if _, ok := aggregated.Debug[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
