package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

// EventRepository stores query audit events in query_events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) RecordQueryEvent(ctx context.Context, event domain.QueryEvent) error {
	intents := event.Intents
	if intents == nil {
		intents = []domain.Domain{}
	}
	sources := event.Sources
	if sources == nil {
		sources = []string{}
	}
	intentsJSON, err := json.Marshal(intents)
	if err != nil {
		return fmt.Errorf("marshal intents: %w", err)
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_events (log_id, ts, user_query, intent_detected, sources_used, response_status, latency_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, event.ID, event.Timestamp, event.Query, intentsJSON, sourcesJSON, event.Status, event.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert query event: %w", err)
	}
	return nil
}
