package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

type RetrievalType string

const (
	RetrievalDeterministic        RetrievalType = "deterministic"
	RetrievalDeterministicKeyword RetrievalType = "deterministic_keyword"
	RetrievalSemantic             RetrievalType = "semantic"
	RetrievalError                RetrievalType = "error"
	RetrievalUnknown              RetrievalType = "unknown"
)

const (
	ConfidenceDeterministic = 1.0
	ConfidenceKeyword       = 0.95
)

// RetrieveRequest is the per-request input shared by every domain strategy.
type RetrieveRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// FieldMatch is an exact match on a payload field.
type FieldMatch struct {
	Key   string
	Value string
}

// Filter conjoins field matches.
type Filter struct {
	Must []FieldMatch
}

func (f Filter) With(key, value string) Filter {
	must := make([]FieldMatch, 0, len(f.Must)+1)
	must = append(must, f.Must...)
	must = append(must, FieldMatch{Key: key, Value: value})
	return Filter{Must: must}
}

func (f Filter) Empty() bool {
	return len(f.Must) == 0
}

type StoredPoint struct {
	ID      string
	Payload map[string]any
}

type ScoredPoint struct {
	StoredPoint
	Score float64
}

type IndexPoint struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Evidence is one retrieved record. Attributes hold the domain projection
// (order_id, status, price, ...) and are flattened into the JSON object.
type Evidence struct {
	Domain     Domain
	ID         string
	Attributes map[string]any
	Payload    map[string]any
	Score      *float64
}

func (e Evidence) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Attributes)+3)
	for k, v := range e.Attributes {
		out[k] = v
	}
	out["domain"] = e.Domain
	out["payload"] = e.Payload
	if e.Score != nil {
		out["similarity_score"] = *e.Score
	}
	return json.Marshal(out)
}

// RetrievalOutcome is the per-domain result. Error is set only for failed
// calls and for recognized identifiers that are absent from the store.
type RetrievalOutcome struct {
	Domain     Domain        `json:"intent"`
	Type       RetrievalType `json:"retrieval_type"`
	Confidence float64       `json:"confidence"`
	Results    []Evidence    `json:"results"`
	Error      string        `json:"error,omitempty"`
}

func DeterministicHit(d Domain, ev Evidence) RetrievalOutcome {
	return RetrievalOutcome{
		Domain:     d,
		Type:       RetrievalDeterministic,
		Confidence: ConfidenceDeterministic,
		Results:    []Evidence{ev},
	}
}

func IdentifierNotFound(d Domain, id string) RetrievalOutcome {
	return RetrievalOutcome{
		Domain:     d,
		Type:       RetrievalDeterministic,
		Confidence: 0,
		Results:    []Evidence{},
		Error:      fmt.Sprintf("%s not found", id),
	}
}

func KeywordHit(d Domain, evidence []Evidence) RetrievalOutcome {
	return RetrievalOutcome{
		Domain:     d,
		Type:       RetrievalDeterministicKeyword,
		Confidence: ConfidenceKeyword,
		Results:    evidence,
	}
}

// SemanticOutcome scores semantic hits by their best similarity. An empty
// hit list is a valid zero-confidence outcome, not an error.
func SemanticOutcome(d Domain, evidence []Evidence) RetrievalOutcome {
	best := 0.0
	for _, ev := range evidence {
		if ev.Score != nil && *ev.Score > best {
			best = *ev.Score
		}
	}
	if evidence == nil {
		evidence = []Evidence{}
	}
	return RetrievalOutcome{
		Domain:     d,
		Type:       RetrievalSemantic,
		Confidence: Round4(best),
		Results:    evidence,
	}
}

func FailedOutcome(d Domain, err error) RetrievalOutcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return RetrievalOutcome{
		Domain:     d,
		Type:       RetrievalError,
		Confidence: 0,
		Results:    []Evidence{},
		Error:      msg,
	}
}

func (o RetrievalOutcome) Contributes() bool {
	return len(o.Results) > 0
}

// AggregatedContext is the merged deliverable of one retrieval request.
// Faithfulness currently mirrors Confidence; it is not an independent
// grounding check.
type AggregatedContext struct {
	Query          string                      `json:"query"`
	Intents        []Domain                    `json:"intents"`
	Evidence       []Evidence                  `json:"aggregated_results"`
	Sources        []Domain                    `json:"sources"`
	RetrievalTypes []RetrievalType             `json:"retrieval_types"`
	Confidence     float64                     `json:"confidence"`
	Faithfulness   float64                     `json:"faithfulness"`
	LatencyMS      int64                       `json:"latency_ms"`
	Debug          map[Domain]RetrievalOutcome `json:"debug"`
}

func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
