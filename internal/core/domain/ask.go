package domain

import "time"

type AskRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type AskResult struct {
	Answer         string            `json:"answer"`
	Intents        []Domain          `json:"intents"`
	Sources        []string          `json:"sources"`
	Confidence     float64           `json:"confidence"`
	Faithfulness   float64           `json:"faithfulness"`
	RetrievalTypes []RetrievalType   `json:"retrieval_types"`
	LatencyMS      int64             `json:"latency_ms"`
	Context        AggregatedContext `json:"context"`
}

const (
	EventStatusSuccess = "success"
	EventStatusError   = "error"
)

// QueryEvent is the structured audit record of one ask request.
type QueryEvent struct {
	ID        string    `json:"log_id"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"user_query"`
	Intents   []Domain  `json:"intent_detected"`
	Sources   []string  `json:"sources_used"`
	Status    string    `json:"response_status"`
	LatencyMS int64     `json:"latency_ms"`
}
