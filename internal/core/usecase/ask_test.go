package usecase

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"testing"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

type retrieverFake struct {
	result domain.AggregatedContext
	req    domain.RetrieveRequest
}

func (f *retrieverFake) Aggregate(_ context.Context, req domain.RetrieveRequest) domain.AggregatedContext {
	f.req = req
	return f.result
}

type generatorFake struct {
	answer   string
	err      error
	question string
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question string, _ domain.AggregatedContext) (string, error) {
	f.question = question
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type eventSinkFake struct {
	events []domain.QueryEvent
	err    error
}

func (f *eventSinkFake) RecordQueryEvent(_ context.Context, event domain.QueryEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func aggregatedFixture() domain.AggregatedContext {
	return domain.AggregatedContext{
		Query:          "refund for ORD1",
		Intents:        []domain.Domain{domain.DomainOrders, domain.DomainPolicies},
		Sources:        []domain.Domain{domain.DomainPolicies},
		RetrievalTypes: []domain.RetrievalType{domain.RetrievalDeterministicKeyword},
		Confidence:     0.95,
		Faithfulness:   0.95,
		Debug: map[domain.Domain]domain.RetrievalOutcome{
			domain.DomainPolicies: {Domain: domain.DomainPolicies, Type: domain.RetrievalDeterministicKeyword},
			domain.DomainOrders:   {Domain: domain.DomainOrders, Type: domain.RetrievalDeterministic, Error: "Order ORD1 not found"},
		},
	}
}

func TestAskSuccessRecordsEvent(t *testing.T) {
	retriever := &retrieverFake{result: aggregatedFixture()}
	generator := &generatorFake{answer: "You can request a refund within 7 days."}
	events := &eventSinkFake{}
	uc := NewAskUseCase(retriever, generator, events)

	res, err := uc.Ask(context.Background(), domain.AskRequest{Query: "  refund for ORD1 ", UserID: "U1", Limit: 2})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if res.Answer != generator.answer || res.Confidence != 0.95 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if retriever.req.Query != "refund for ORD1" || retriever.req.UserID != "U1" || retriever.req.Limit != 2 {
		t.Fatalf("unexpected retrieve request: %+v", retriever.req)
	}
	wantSources := []string{"orders_collection", "policies_collection"}
	if !slices.Equal(res.Sources, wantSources) {
		t.Fatalf("sources should list invoked collections in priority order, got %v", res.Sources)
	}
	if len(events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(events.events))
	}
	ev := events.events[0]
	if ev.Status != domain.EventStatusSuccess || !slices.Equal(ev.Sources, wantSources) {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !regexp.MustCompile(`^LOG[0-9A-F]{6}$`).MatchString(ev.ID) {
		t.Fatalf("unexpected event id %q", ev.ID)
	}
}

func TestAskGeneratorFailureRecordsErrorEvent(t *testing.T) {
	events := &eventSinkFake{}
	uc := NewAskUseCase(&retrieverFake{result: aggregatedFixture()}, &generatorFake{err: errors.New("llm down")}, events)

	_, err := uc.Ask(context.Background(), domain.AskRequest{Query: "refund"})
	if err == nil {
		t.Fatalf("expected generate error")
	}
	if len(events.events) != 1 || events.events[0].Status != domain.EventStatusError {
		t.Fatalf("expected error event, got %+v", events.events)
	}
}

func TestAskEventSinkFailureDoesNotFailRequest(t *testing.T) {
	uc := NewAskUseCase(
		&retrieverFake{result: aggregatedFixture()},
		&generatorFake{answer: "ok"},
		&eventSinkFake{err: errors.New("db down")},
	)

	if _, err := uc.Ask(context.Background(), domain.AskRequest{Query: "refund"}); err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
}

func TestAskValidation(t *testing.T) {
	uc := NewAskUseCase(&retrieverFake{}, &generatorFake{}, nil)
	if _, err := uc.Ask(context.Background(), domain.AskRequest{Query: "   "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	uc = NewAskUseCase(&retrieverFake{}, nil, nil)
	if _, err := uc.Ask(context.Background(), domain.AskRequest{Query: "refund"}); !domain.IsKind(err, domain.ErrNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}
