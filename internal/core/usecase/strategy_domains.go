package usecase

import (
	"github.com/kirillkom/commerce-rag/internal/core/domain"
	"github.com/kirillkom/commerce-rag/internal/core/ports"
)

// NewOrdersStrategy looks orders up by ORD<n>, scoped to the caller's
// user_id when one is supplied.
func NewOrdersStrategy(embedder ports.Embedder, store ports.VectorStore) *TieredStrategy {
	return newTieredStrategy(strategyConfig{
		domain:     domain.DomainOrders,
		label:      "Order",
		idField:    "order_id",
		idMatcher:  MatchOrderID,
		ownerField: "user_id",
		project:    projectOrder,
	}, embedder, store)
}

// NewProductsStrategy looks products up by PROD<n>.
func NewProductsStrategy(embedder ports.Embedder, store ports.VectorStore) *TieredStrategy {
	return newTieredStrategy(strategyConfig{
		domain:    domain.DomainProducts,
		label:     "Product",
		idField:   "product_id",
		idMatcher: MatchProductID,
		project:   projectProduct,
	}, embedder, store)
}

// NewPoliciesStrategy looks policies up by POL<n>, then by policy_type
// keyword, then semantically.
func NewPoliciesStrategy(embedder ports.Embedder, store ports.VectorStore, typeKeywords []string) *TieredStrategy {
	if len(typeKeywords) == 0 {
		typeKeywords = DefaultRoutingRules().PolicyTypeKeywords
	}
	return newTieredStrategy(strategyConfig{
		domain:       domain.DomainPolicies,
		label:        "Policy",
		idField:      "policy_id",
		idMatcher:    MatchPolicyID,
		keywordField: "policy_type",
		keywords:     typeKeywords,
		project:      projectPolicy,
	}, embedder, store)
}

// NewDomainStrategies builds the three strategies in priority order.
func NewDomainStrategies(embedder ports.Embedder, store ports.VectorStore, rules RoutingRules) []Strategy {
	rules = DefaultRoutingRules().Merge(rules)
	return []Strategy{
		NewOrdersStrategy(embedder, store),
		NewProductsStrategy(embedder, store),
		NewPoliciesStrategy(embedder, store, rules.PolicyTypeKeywords),
	}
}

func projectOrder(payload map[string]any) map[string]any {
	out := pick(payload, "order_id", "total_amount", "created_at", "payment_status")
	status, ok := payload["status"]
	if !ok || status == nil {
		status = payload["order_status"]
	}
	out["status"] = status
	return out
}

func projectProduct(payload map[string]any) map[string]any {
	return pick(payload, "product_id", "name", "category", "price")
}

func projectPolicy(payload map[string]any) map[string]any {
	return pick(payload, "policy_id", "policy_type", "title")
}
