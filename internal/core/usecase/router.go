package usecase

import (
	"slices"

	"github.com/kirillkom/commerce-rag/internal/core/domain"
)

var defaultPolicyKeywords = []string{
	"refund",
	"return",
	"warranty",
	"policy",
	"compensation",
	"shipping",
	"cancellation",
	"exchange",
	"privacy",
	"payment",
	"damaged",
	"defective",
	"broken",
	"late delivery",
	"delay",
	"lost",
}

var defaultProductContextKeywords = []string{
	"price",
	"cost",
	"under",
	"above",
	"below",
	"available",
	"list",
	"show products",
}

var defaultPolicyTypeKeywords = []string{
	"refund",
	"return",
	"warranty",
	"shipping",
	"cancellation",
	"privacy",
	"payment",
	"exchange",
}

// RoutingRules holds the keyword sets used for intent routing and the
// policy keyword tier.
type RoutingRules struct {
	PolicyKeywords         []string
	ProductContextKeywords []string
	PolicyTypeKeywords     []string
}

func DefaultRoutingRules() RoutingRules {
	return RoutingRules{
		PolicyKeywords:         slices.Clone(defaultPolicyKeywords),
		ProductContextKeywords: slices.Clone(defaultProductContextKeywords),
		PolicyTypeKeywords:     slices.Clone(defaultPolicyTypeKeywords),
	}
}

// Merge keeps default lists for every empty override.
func (r RoutingRules) Merge(override RoutingRules) RoutingRules {
	out := r
	if len(override.PolicyKeywords) > 0 {
		out.PolicyKeywords = slices.Clone(override.PolicyKeywords)
	}
	if len(override.ProductContextKeywords) > 0 {
		out.ProductContextKeywords = slices.Clone(override.ProductContextKeywords)
	}
	if len(override.PolicyTypeKeywords) > 0 {
		out.PolicyTypeKeywords = slices.Clone(override.PolicyTypeKeywords)
	}
	return out
}

type IntentRouter struct {
	rules RoutingRules
}

func NewIntentRouter(rules RoutingRules) *IntentRouter {
	return &IntentRouter{rules: DefaultRoutingRules().Merge(rules)}
}

// Detect returns the applicable domains, unique and in priority order.
// It never fails; an empty result means no domain matched.
func (r *IntentRouter) Detect(query string) []domain.Domain {
	found := make(map[domain.Domain]struct{}, 3)

	if _, ok := MatchOrderID(query); ok {
		found[domain.DomainOrders] = struct{}{}
	}
	if _, ok := MatchProductID(query); ok {
		found[domain.DomainProducts] = struct{}{}
	}
	if _, ok := ContainsAny(query, r.rules.PolicyKeywords); ok {
		found[domain.DomainPolicies] = struct{}{}
	}
	if _, ok := ContainsAny(query, r.rules.ProductContextKeywords); ok {
		found[domain.DomainProducts] = struct{}{}
	}

	out := make([]domain.Domain, 0, len(found))
	for d := range found {
		out = append(out, d)
	}
	sortByPriority(out)
	return out
}

// DetectIntents routes with the default rules.
func DetectIntents(query string) []domain.Domain {
	return defaultRouter.Detect(query)
}

var defaultRouter = NewIntentRouter(RoutingRules{})

func sortByPriority(domains []domain.Domain) {
	slices.SortFunc(domains, func(a, b domain.Domain) int {
		return a.Priority() - b.Priority()
	})
}
