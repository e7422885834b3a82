package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

// DomainPolicy selects which strategies an aggregate request invokes.
type DomainPolicy string

const (
	// PolicyRouted invokes only the domains returned by the intent router.
	PolicyRouted DomainPolicy = "routed"
	// PolicyAll invokes every domain regardless of intent.
	PolicyAll DomainPolicy = "all"
)

func ParseDomainPolicy(raw string) (DomainPolicy, error) {
	switch DomainPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicyRouted:
		return PolicyRouted, nil
	case PolicyAll:
		return PolicyAll, nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "parse domain policy", fmt.Errorf("unknown policy %q", raw))
	}
}

type AggregatorOptions struct {
	Policy       DomainPolicy
	DefaultLimit int
	Invoker      *Invoker
	Observer     ports.RetrievalObserver
}

type Aggregator struct {
	router     ports.IntentDetector
	strategies map[domain.Domain]Strategy
	invoker    *Invoker
	policy     DomainPolicy
	limit      int
	observer   ports.RetrievalObserver
}

func NewAggregator(router ports.IntentDetector, strategies []Strategy, opts AggregatorOptions) *Aggregator {
	byDomain := make(map[domain.Domain]Strategy, len(strategies))
	for _, s := range strategies {
		if s != nil {
			byDomain[s.Domain()] = s
		}
	}
	if router == nil {
		router = defaultRouter
	}
	invoker := opts.Invoker
	if invoker == nil {
		invoker = NewInvoker(0)
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicyRouted
	}
	limit := opts.DefaultLimit
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}
	return &Aggregator{
		router:     router,
		strategies: byDomain,
		invoker:    invoker,
		policy:     policy,
		limit:      limit,
		observer:   opts.Observer,
	}
}

// Detect exposes the router so the aggregator can serve intent-only callers.
func (a *Aggregator) Detect(query string) []domain.Domain {
	return a.router.Detect(query)
}

// Aggregate never fails: a faulty domain only lowers confidence and drops
// out of Sources while staying visible in Debug.
func (a *Aggregator) Aggregate(ctx context.Context, req domain.RetrieveRequest) domain.AggregatedContext {
	start := time.Now()
	if req.Limit <= 0 {
		req.Limit = a.limit
	}

	intents := a.router.Detect(req.Query)
	selected := a.selectDomains(intents)

	outcomes := make([]domain.RetrievalOutcome, len(selected))
	var g errgroup.Group
	for idx, d := range selected {
		strategy := a.strategies[d]
		g.Go(func() error {
			invokeStart := time.Now()
			outcome := a.invoker.Invoke(ctx, strategy, req)
			outcomes[idx] = outcome
			a.observeOutcome(outcome, time.Since(invokeStart))
			return nil
		})
	}
	// Workers always return nil; Wait is only the join barrier.
	_ = g.Wait()

	result := merge(req.Query, intents, outcomes)
	result.LatencyMS = time.Since(start).Milliseconds()

	slog.Info("retrieval_aggregated",
		"intents", intents,
		"sources", result.Sources,
		"retrieval_types", result.RetrievalTypes,
		"confidence", result.Confidence,
		"latency_ms", result.LatencyMS,
	)
	if a.observer != nil {
		a.observer.ObserveAggregate(result)
	}
	return result
}

func (a *Aggregator) selectDomains(intents []domain.Domain) []domain.Domain {
	candidates := intents
	if a.policy == PolicyAll {
		candidates = domain.AllDomains()
	}
	out := make([]domain.Domain, 0, len(candidates))
	for _, d := range candidates {
		if _, ok := a.strategies[d]; ok {
			out = append(out, d)
		}
	}
	return out
}

func (a *Aggregator) observeOutcome(outcome domain.RetrievalOutcome, duration time.Duration) {
	if a.observer != nil {
		a.observer.ObserveOutcome(outcome, duration)
	}
}

// merge expects outcomes in domain priority order.
func merge(query string, intents []domain.Domain, outcomes []domain.RetrievalOutcome) domain.AggregatedContext {
	result := domain.AggregatedContext{
		Query:          query,
		Intents:        intents,
		Evidence:       []domain.Evidence{},
		Sources:        []domain.Domain{},
		RetrievalTypes: []domain.RetrievalType{},
		Debug:          make(map[domain.Domain]domain.RetrievalOutcome, len(outcomes)),
	}
	if result.Intents == nil {
		result.Intents = []domain.Domain{}
	}

	best := 0.0
	seenTypes := make(map[domain.RetrievalType]struct{}, len(outcomes))
	for _, outcome := range outcomes {
		result.Debug[outcome.Domain] = outcome
		if !outcome.Contributes() {
			continue
		}
		result.Evidence = append(result.Evidence, outcome.Results...)
		result.Sources = append(result.Sources, outcome.Domain)
		if outcome.Confidence > best {
			best = outcome.Confidence
		}
		if _, ok := seenTypes[outcome.Type]; !ok {
			seenTypes[outcome.Type] = struct{}{}
			result.RetrievalTypes = append(result.RetrievalTypes, outcome.Type)
		}
	}

	result.Confidence = domain.Round4(best)
	// Placeholder until an answer-grounding check exists.
	result.Faithfulness = domain.Round4(result.Confidence)
	return result
}
