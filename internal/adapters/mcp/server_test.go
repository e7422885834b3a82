package mcpadapter

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

type retrieverFake struct {
	last domain.RetrieveRequest
}

func (f *retrieverFake) Aggregate(_ context.Context, req domain.RetrieveRequest) domain.AggregatedContext {
	f.last = req
	return domain.AggregatedContext{
		Query:          req.Query,
		Intents:        []domain.Domain{domain.DomainOrders},
		Sources:        []domain.Domain{domain.DomainOrders},
		RetrievalTypes: []domain.RetrievalType{domain.RetrievalDeterministic},
		Confidence:     1,
		Faithfulness:   1,
	}
}

type detectorFake struct {
	intents []domain.Domain
}

func (f detectorFake) Detect(string) []domain.Domain {
	return f.intents
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("unexpected tool result %+v", result)
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestRetrieveContextReturnsAggregatedJSON(t *testing.T) {
	retriever := &retrieverFake{}
	s := NewServer(retriever, detectorFake{}, 3, "test")

	result, err := s.handleRetrieveContext(context.Background(), callRequest("retrieve_context", map[string]any{
		"query":   " where is ORD1023? ",
		"user_id": "u-7",
		"limit":   float64(5),
	}))
	if err != nil {
		t.Fatalf("handleRetrieveContext() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}

	var aggregated domain.AggregatedContext
	if err := json.Unmarshal([]byte(resultText(t, result)), &aggregated); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if aggregated.Confidence != 1 || aggregated.Query != "where is ORD1023?" {
		t.Fatalf("unexpected aggregated context %+v", aggregated)
	}
	if retriever.last.UserID != "u-7" || retriever.last.Limit != 5 {
		t.Fatalf("unexpected retrieve request %+v", retriever.last)
	}
}

func TestRetrieveContextDefaultsAndCapsLimit(t *testing.T) {
	retriever := &retrieverFake{}
	s := NewServer(retriever, detectorFake{}, 3, "test")

	if _, err := s.handleRetrieveContext(context.Background(), callRequest("retrieve_context", map[string]any{"query": "refund"})); err != nil {
		t.Fatalf("handleRetrieveContext() error = %v", err)
	}
	if retriever.last.Limit != 3 {
		t.Fatalf("expected default limit 3, got %d", retriever.last.Limit)
	}

	if _, err := s.handleRetrieveContext(context.Background(), callRequest("retrieve_context", map[string]any{"query": "refund", "limit": float64(500)})); err != nil {
		t.Fatalf("handleRetrieveContext() error = %v", err)
	}
	if retriever.last.Limit != maxLimit {
		t.Fatalf("expected capped limit %d, got %d", maxLimit, retriever.last.Limit)
	}
}

func TestRetrieveContextRequiresQuery(t *testing.T) {
	s := NewServer(&retrieverFake{}, detectorFake{}, 3, "test")

	result, err := s.handleRetrieveContext(context.Background(), callRequest("retrieve_context", map[string]any{"query": "  "}))
	if err != nil {
		t.Fatalf("handleRetrieveContext() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for blank query")
	}
}

func TestDetectIntentsReturnsDomainList(t *testing.T) {
	s := NewServer(&retrieverFake{}, detectorFake{intents: []domain.Domain{domain.DomainOrders, domain.DomainPolicies}}, 3, "test")

	result, err := s.handleDetectIntents(context.Background(), callRequest("detect_intents", map[string]any{"query": "refund for ORD1023"}))
	if err != nil {
		t.Fatalf("handleDetectIntents() error = %v", err)
	}
	if got := resultText(t, result); got != `["orders","policies"]` {
		t.Fatalf("unexpected intents %s", got)
	}
}

func TestDetectIntentsEncodesEmptyList(t *testing.T) {
	s := NewServer(&retrieverFake{}, detectorFake{}, 3, "test")

	result, err := s.handleDetectIntents(context.Background(), callRequest("detect_intents", map[string]any{"query": "hello"}))
	if err != nil {
		t.Fatalf("handleDetectIntents() error = %v", err)
	}
	if got := resultText(t, result); got != `[]` {
		t.Fatalf("expected empty list, got %s", got)
	}
}
