package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

const defaultRetrieveLimit = 3

// Strategy retrieves evidence for a single domain. Provider failures are
// returned as errors and converted to outcomes by the Invoker.
type Strategy interface {
	Domain() domain.Domain
	Retrieve(ctx context.Context, req domain.RetrieveRequest) (domain.RetrievalOutcome, error)
}

// strategyConfig describes one domain's identifier lookup, optional keyword
// axis and evidence projection.
type strategyConfig struct {
	domain     domain.Domain
	collection string
	label      string

	idField   string
	idMatcher IdentifierMatcher

	// ownerField scopes both tiers to the caller when the request has a user id.
	ownerField string

	keywordField string
	keywords     []string

	project func(payload map[string]any) map[string]any
}

// TieredStrategy runs identifier lookup, then keyword lookup, then semantic
// search. A recognized identifier that is absent from the store is final.
type TieredStrategy struct {
	cfg      strategyConfig
	embedder ports.Embedder
	store    ports.VectorStore
}

func newTieredStrategy(cfg strategyConfig, embedder ports.Embedder, store ports.VectorStore) *TieredStrategy {
	if cfg.collection == "" {
		cfg.collection = cfg.domain.Collection()
	}
	if cfg.project == nil {
		cfg.project = func(map[string]any) map[string]any { return map[string]any{} }
	}
	return &TieredStrategy{
		cfg:      cfg,
		embedder: embedder,
		store:    store,
	}
}

func (s *TieredStrategy) Domain() domain.Domain {
	return s.cfg.domain
}

func (s *TieredStrategy) Retrieve(ctx context.Context, req domain.RetrieveRequest) (domain.RetrievalOutcome, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRetrieveLimit
	}

	if id, ok := s.matchIdentifier(req.Query); ok {
		return s.lookupByID(ctx, id, req.UserID)
	}

	if keyword, ok := s.matchKeyword(req.Query); ok {
		outcome, hit, err := s.lookupByKeyword(ctx, keyword, limit)
		if err != nil {
			return domain.RetrievalOutcome{}, err
		}
		if hit {
			return outcome, nil
		}
	}

	return s.searchSemantic(ctx, req.Query, req.UserID, limit)
}

func (s *TieredStrategy) matchIdentifier(query string) (string, bool) {
	if s.cfg.idMatcher == nil {
		return "", false
	}
	return s.cfg.idMatcher(query)
}

func (s *TieredStrategy) matchKeyword(query string) (string, bool) {
	if s.cfg.keywordField == "" || len(s.cfg.keywords) == 0 {
		return "", false
	}
	return ContainsAny(query, s.cfg.keywords)
}

func (s *TieredStrategy) lookupByID(ctx context.Context, id, userID string) (domain.RetrievalOutcome, error) {
	filter := s.ownerFilter(userID).With(s.cfg.idField, id)

	point, err := s.store.Lookup(ctx, s.cfg.collection, filter)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecordNotFound) {
			return domain.IdentifierNotFound(s.cfg.domain, s.displayName(id)), nil
		}
		return domain.RetrievalOutcome{}, fmt.Errorf("lookup %s %s: %w", s.cfg.idField, id, err)
	}
	return domain.DeterministicHit(s.cfg.domain, s.evidence(point.Payload, nil)), nil
}

func (s *TieredStrategy) lookupByKeyword(ctx context.Context, keyword string, limit int) (domain.RetrievalOutcome, bool, error) {
	filter := domain.Filter{}.With(s.cfg.keywordField, keyword)

	points, err := s.store.Scroll(ctx, s.cfg.collection, filter, limit)
	if err != nil {
		return domain.RetrievalOutcome{}, false, fmt.Errorf("scroll %s=%s: %w", s.cfg.keywordField, keyword, err)
	}
	if len(points) == 0 {
		return domain.RetrievalOutcome{}, false, nil
	}

	evidence := make([]domain.Evidence, 0, len(points))
	for _, p := range points {
		evidence = append(evidence, s.evidence(p.Payload, nil))
	}
	return domain.KeywordHit(s.cfg.domain, evidence), true, nil
}

func (s *TieredStrategy) searchSemantic(ctx context.Context, query, userID string, limit int) (domain.RetrievalOutcome, error) {
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.RetrievalOutcome{}, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return domain.RetrievalOutcome{}, fmt.Errorf("embed query: empty vector")
	}

	hits, err := s.store.Search(ctx, s.cfg.collection, vector, limit, s.ownerFilter(userID))
	if err != nil {
		return domain.RetrievalOutcome{}, fmt.Errorf("search %s: %w", s.cfg.collection, err)
	}

	evidence := make([]domain.Evidence, 0, len(hits))
	for _, hit := range hits {
		score := domain.Round4(hit.Score)
		evidence = append(evidence, s.evidence(hit.Payload, &score))
	}
	return domain.SemanticOutcome(s.cfg.domain, evidence), nil
}

func (s *TieredStrategy) ownerFilter(userID string) domain.Filter {
	if s.cfg.ownerField == "" || strings.TrimSpace(userID) == "" {
		return domain.Filter{}
	}
	return domain.Filter{}.With(s.cfg.ownerField, userID)
}

func (s *TieredStrategy) evidence(payload map[string]any, score *float64) domain.Evidence {
	if payload == nil {
		payload = map[string]any{}
	}
	return domain.Evidence{
		Domain:     s.cfg.domain,
		ID:         payloadString(payload, s.cfg.idField),
		Attributes: s.cfg.project(payload),
		Payload:    payload,
		Score:      score,
	}
}

func (s *TieredStrategy) displayName(id string) string {
	if s.cfg.label == "" {
		return id
	}
	return s.cfg.label + " " + id
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func pick(payload map[string]any, keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		out[key] = payload[key]
	}
	return out
}
