package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{Default: Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{
			Retryable:     errors.Is(err, errTemp),
			RecordFailure: true,
		}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{Default: Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled: true,
		Default: Policy{
			MaxAttempts:          1,
			BreakerMinRequests:   2,
			BreakerFailureRatio:  0.5,
			BreakerOpenTimeout:   50 * time.Millisecond,
			BreakerHalfOpenCalls: 1,
		},
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestCallReturnsValueAfterRetry(t *testing.T) {
	exec := NewExecutor(Config{Default: Policy{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}})

	attempts := 0
	got, err := Call(context.Background(), exec, "embed", func(context.Context) ([]float32, error) {
		attempts++
		if attempts == 1 {
			return nil, &StatusError{Service: "ollama", Operation: "embed", StatusCode: 503, Status: "503 Service Unavailable"}
		}
		return []float32{1, 2}, nil
	}, ClassifyHTTP)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if len(got) != 2 || attempts != 2 {
		t.Fatalf("unexpected result %v after %d attempts", got, attempts)
	}
}

func TestCallWithNilExecutorRunsDirectly(t *testing.T) {
	got, err := Call(context.Background(), nil, "op", func(context.Context) (int, error) {
		return 7, nil
	}, nil)
	if err != nil || got != 7 {
		t.Fatalf("unexpected result %d, %v", got, err)
	}
}

func TestStateListenerSeesOpenBreaker(t *testing.T) {
	exec := NewExecutor(Config{
		BreakerEnabled: true,
		Default: Policy{
			MaxAttempts:          1,
			BreakerMinRequests:   1,
			BreakerFailureRatio:  0.5,
			BreakerOpenTimeout:   time.Second,
			BreakerHalfOpenCalls: 1,
		},
	})
	var states []gobreaker.State
	exec.OnStateChange(func(_ string, state gobreaker.State) {
		states = append(states, state)
	})

	_ = exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		return errors.New("down")
	}, nil)

	if len(states) != 1 || states[0] != gobreaker.StateOpen {
		t.Fatalf("expected open state notification, got %v", states)
	}
}

func TestDependencyOverrideDrivesRetries(t *testing.T) {
	exec := NewExecutor(Config{
		Default: Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		Dependencies: map[string]Policy{
			DependencyOllama: {MaxAttempts: 1},
		},
	})
	retryAll := func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	}

	calls := map[string]int{}
	for _, op := range []string{"ollama.generate", "qdrant.search"} {
		_ = exec.Execute(context.Background(), op, func(context.Context) error {
			calls[op]++
			return errors.New("unavailable")
		}, retryAll)
	}
	if calls["ollama.generate"] != 1 || calls["qdrant.search"] != 3 {
		t.Fatalf("unexpected attempts per dependency: %v", calls)
	}
}

func TestExecuteStopsRetryingWhenContextEnds(t *testing.T) {
	exec := NewExecutor(Config{Default: Policy{MaxAttempts: 5, InitialBackoff: time.Second}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	start := time.Now()
	err := exec.Execute(ctx, "openai.chat", func(context.Context) error {
		attempts++
		return errors.New("overloaded")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err == nil || attempts != 1 {
		t.Fatalf("expected one failed attempt, got %d attempts err=%v", attempts, err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("backoff must end with the context")
	}
}
