package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

type strategyFake struct {
	domain  domain.Domain
	outcome domain.RetrievalOutcome
	err     error
	panicV  any
	delay   time.Duration
}

func (f *strategyFake) Domain() domain.Domain { return f.domain }

// Retrieve ignores ctx so the invoker's own deadline is what ends the call.
func (f *strategyFake) Retrieve(context.Context, domain.RetrieveRequest) (domain.RetrievalOutcome, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.outcome, f.err
}

func TestInvokeReturnsStrategyOutcome(t *testing.T) {
	ev := domain.Evidence{Domain: domain.DomainOrders, ID: "ORD1"}
	inv := NewInvoker(time.Second)

	got := inv.Invoke(context.Background(), &strategyFake{
		domain:  domain.DomainOrders,
		outcome: domain.DeterministicHit(domain.DomainOrders, ev),
	}, domain.RetrieveRequest{Query: "ORD1"})

	if got.Type != domain.RetrievalDeterministic || got.Confidence != 1 || len(got.Results) != 1 {
		t.Fatalf("unexpected outcome: %+v", got)
	}
}

func TestInvokeConvertsErrorToOutcome(t *testing.T) {
	inv := NewInvoker(time.Second)

	got := inv.Invoke(context.Background(), &strategyFake{
		domain: domain.DomainProducts,
		err:    errors.New("qdrant unavailable"),
	}, domain.RetrieveRequest{Query: "laptop"})

	if got.Domain != domain.DomainProducts || got.Type != domain.RetrievalError {
		t.Fatalf("unexpected outcome: %+v", got)
	}
	if got.Confidence != 0 || len(got.Results) != 0 || got.Results == nil {
		t.Fatalf("error outcome must be empty with zero confidence: %+v", got)
	}
	if got.Error != "qdrant unavailable" {
		t.Fatalf("unexpected error message %q", got.Error)
	}
}

func TestInvokeRecoversPanic(t *testing.T) {
	inv := NewInvoker(time.Second)

	got := inv.Invoke(context.Background(), &strategyFake{
		domain: domain.DomainPolicies,
		panicV: "boom",
	}, domain.RetrieveRequest{Query: "refund"})

	if got.Type != domain.RetrievalError || !strings.Contains(got.Error, "boom") {
		t.Fatalf("expected recovered panic outcome, got %+v", got)
	}
}

func TestInvokeTimesOut(t *testing.T) {
	inv := NewInvoker(20 * time.Millisecond)

	start := time.Now()
	got := inv.Invoke(context.Background(), &strategyFake{
		domain: domain.DomainProducts,
		delay:  time.Second,
	}, domain.RetrieveRequest{Query: "laptop"})

	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("invoke should return at the timeout")
	}
	if got.Type != domain.RetrievalError || !strings.Contains(got.Error, "timed out") {
		t.Fatalf("expected timeout outcome, got %+v", got)
	}
}

func TestInvokeNormalizesOutcome(t *testing.T) {
	inv := NewInvoker(time.Second)

	got := inv.Invoke(context.Background(), &strategyFake{
		domain:  domain.DomainOrders,
		outcome: domain.RetrievalOutcome{Domain: domain.DomainPolicies, Confidence: 0.3},
	}, domain.RetrieveRequest{})

	if got.Domain != domain.DomainOrders {
		t.Fatalf("domain must come from the strategy, got %s", got.Domain)
	}
	if got.Type != domain.RetrievalUnknown {
		t.Fatalf("expected unknown type, got %s", got.Type)
	}
	if got.Results == nil {
		t.Fatalf("results must never be nil")
	}

	got = inv.Invoke(context.Background(), &strategyFake{
		domain: domain.DomainOrders,
		outcome: domain.RetrievalOutcome{
			Type:       domain.RetrievalError,
			Confidence: 0.9,
			Results:    []domain.Evidence{{ID: "x"}},
		},
	}, domain.RetrieveRequest{})
	if got.Confidence != 0 || len(got.Results) != 0 || got.Error == "" {
		t.Fatalf("error outcome was not normalized: %+v", got)
	}
}

func TestInvokeNilStrategy(t *testing.T) {
	got := NewInvoker(0).Invoke(context.Background(), nil, domain.RetrieveRequest{})
	if got.Type != domain.RetrievalError {
		t.Fatalf("expected error outcome, got %+v", got)
	}
}

func TestInvokeReportsParentCancellation(t *testing.T) {
	inv := NewInvoker(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	got := inv.Invoke(ctx, &strategyFake{
		domain: domain.DomainOrders,
		delay:  time.Second,
	}, domain.RetrieveRequest{Query: "ORD1"})

	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("invoke should return as soon as the request is cancelled")
	}
	if got.Type != domain.RetrievalError || got.Domain != domain.DomainOrders {
		t.Fatalf("expected orders error outcome, got %+v", got)
	}
	if !strings.Contains(got.Error, "cancelled") || strings.Contains(got.Error, "timed out") {
		t.Fatalf("expected cancellation message, got %q", got.Error)
	}
}
