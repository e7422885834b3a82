package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

const defaultDomainTimeout = 5 * time.Second

// Invoker is the only fault boundary of the engine: every strategy call comes
// back as a well-formed outcome, whatever the strategy did.
type Invoker struct {
	timeout time.Duration
}

func NewInvoker(timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = defaultDomainTimeout
	}
	return &Invoker{timeout: timeout}
}

type invokeResult struct {
	outcome domain.RetrievalOutcome
	err     error
}

func (i *Invoker) Invoke(ctx context.Context, strategy Strategy, req domain.RetrieveRequest) domain.RetrievalOutcome {
	if strategy == nil {
		return domain.FailedOutcome("", errors.New("strategy is nil"))
	}
	d := strategy.Domain()

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	// Buffered so a strategy that ignores cancellation can still finish and exit.
	done := make(chan invokeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeResult{err: fmt.Errorf("%s strategy panic: %v", d, r)}
			}
		}()
		outcome, err := strategy.Retrieve(callCtx, req)
		done <- invokeResult{outcome: outcome, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			slog.Warn("domain_retrieval_failed", "domain", string(d), "error", res.err)
			return domain.FailedOutcome(d, res.err)
		}
		return normalizeOutcome(d, res.outcome)
	case <-callCtx.Done():
		err := callCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%s retrieval timed out after %s", d, i.timeout)
		} else {
			err = fmt.Errorf("%s retrieval cancelled: %w", d, err)
		}
		slog.Warn("domain_retrieval_failed", "domain", string(d), "error", err)
		return domain.FailedOutcome(d, err)
	}
}

func normalizeOutcome(d domain.Domain, outcome domain.RetrievalOutcome) domain.RetrievalOutcome {
	outcome.Domain = d
	if outcome.Type == "" {
		outcome.Type = domain.RetrievalUnknown
	}
	if outcome.Results == nil {
		outcome.Results = []domain.Evidence{}
	}
	if outcome.Type == domain.RetrievalError {
		outcome.Results = []domain.Evidence{}
		outcome.Confidence = 0
		if outcome.Error == "" {
			outcome.Error = "unknown error"
		}
	}
	return outcome
}
