package domain

import (
	"fmt"
	"strings"
)

// Domain tags a retrieval source. The set is closed.
type Domain string

const (
	DomainOrders   Domain = "orders"
	DomainProducts Domain = "products"
	DomainPolicies Domain = "policies"
)

// AllDomains lists every domain in routing priority order.
func AllDomains() []Domain {
	return []Domain{DomainOrders, DomainProducts, DomainPolicies}
}

// Priority orders domains: orders before products before policies.
// Unknown tags sort last.
func (d Domain) Priority() int {
	switch d {
	case DomainOrders:
		return 0
	case DomainProducts:
		return 1
	case DomainPolicies:
		return 2
	default:
		return 3
	}
}

// Collection is the vector store collection backing the domain.
func (d Domain) Collection() string {
	return string(d) + "_collection"
}

func (d Domain) Valid() bool {
	return d.Priority() < 3
}

func ParseDomain(raw string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(raw)))
	if !d.Valid() {
		return "", WrapError(ErrInvalidInput, "parse domain", fmt.Errorf("unknown domain %q", raw))
	}
	return d, nil
}

// Collections maps domains to their collection names preserving order.
func Collections(domains []Domain) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		out = append(out, d.Collection())
	}
	return out
}
