package usecase

import (
	"regexp"
	"strings"
)

var (
	orderIDPattern   = regexp.MustCompile(`(?i)\bORD\d+\b`)
	productIDPattern = regexp.MustCompile(`(?i)\bPROD\d+\b`)
	policyIDPattern  = regexp.MustCompile(`(?i)\bPOL\d+\b`)
)

// IdentifierMatcher extracts a normalized identifier from free text.
type IdentifierMatcher func(text string) (string, bool)

func MatchOrderID(text string) (string, bool) {
	return matchIdentifier(orderIDPattern, text)
}

func MatchProductID(text string) (string, bool) {
	return matchIdentifier(productIDPattern, text)
}

func MatchPolicyID(text string) (string, bool) {
	return matchIdentifier(policyIDPattern, text)
}

func matchIdentifier(pattern *regexp.Regexp, text string) (string, bool) {
	match := pattern.FindString(text)
	if match == "" {
		return "", false
	}
	return strings.ToUpper(match), true
}

// ContainsAny returns the first keyword, in list order, found as a substring
// of the lower-cased text.
func ContainsAny(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}
