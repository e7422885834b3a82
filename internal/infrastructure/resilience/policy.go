package resilience

import (
	"strings"
	"time"
)

// Dependency names double as operation prefixes ("qdrant.search").
const (
	DependencyQdrant = "qdrant"
	DependencyOllama = "ollama"
	DependencyOpenAI = "openai"
	DependencyNATS   = "nats"
)

// Policy is the retry and breaker budget of one dependency. Zero fields
// inherit from Config.Default.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerMinRequests   uint32
	BreakerFailureRatio  float64
	BreakerOpenTimeout   time.Duration
	BreakerHalfOpenCalls uint32
}

type Config struct {
	BreakerEnabled bool
	Default        Policy
	Dependencies   map[string]Policy
}

var basePolicy = Policy{
	MaxAttempts:          3,
	InitialBackoff:       100 * time.Millisecond,
	MaxBackoff:           400 * time.Millisecond,
	Multiplier:           2.0,
	BreakerMinRequests:   10,
	BreakerFailureRatio:  0.5,
	BreakerOpenTimeout:   30 * time.Second,
	BreakerHalfOpenCalls: 2,
}

// DefaultConfig keeps vector store retries inside the per-domain retrieval
// budget and gives the hosted LLM room to ride out 429s.
func DefaultConfig() Config {
	return Config{
		BreakerEnabled: true,
		Default:        basePolicy,
		Dependencies: map[string]Policy{
			DependencyQdrant: {
				InitialBackoff:     50 * time.Millisecond,
				MaxBackoff:         200 * time.Millisecond,
				BreakerOpenTimeout: 15 * time.Second,
			},
			DependencyOllama: {
				MaxAttempts:    2,
				InitialBackoff: 250 * time.Millisecond,
				MaxBackoff:     time.Second,
			},
			DependencyOpenAI: {
				InitialBackoff:     500 * time.Millisecond,
				MaxBackoff:         4 * time.Second,
				BreakerOpenTimeout: time.Minute,
			},
		},
	}
}

// PolicyFor resolves the policy of an operation by its dependency prefix.
func (c Config) PolicyFor(operation string) Policy {
	base := c.Default.inherit(basePolicy).normalize()
	name, _, _ := strings.Cut(operation, ".")
	override, ok := c.Dependencies[name]
	if !ok {
		return base
	}
	return override.inherit(base).normalize()
}

func (p Policy) inherit(base Policy) Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = base.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = base.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = base.MaxBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = base.Multiplier
	}
	if p.BreakerMinRequests == 0 {
		p.BreakerMinRequests = base.BreakerMinRequests
	}
	if p.BreakerFailureRatio <= 0 || p.BreakerFailureRatio > 1 {
		p.BreakerFailureRatio = base.BreakerFailureRatio
	}
	if p.BreakerOpenTimeout <= 0 {
		p.BreakerOpenTimeout = base.BreakerOpenTimeout
	}
	if p.BreakerHalfOpenCalls == 0 {
		p.BreakerHalfOpenCalls = base.BreakerHalfOpenCalls
	}
	return p
}

func (p Policy) normalize() Policy {
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 1.0
	}
	return p
}

// backoff is the wait before retry number attempt (1-based), capped at MaxBackoff.
func (p Policy) backoff(attempt int) time.Duration {
	wait := float64(p.InitialBackoff)
	for range attempt - 1 {
		wait *= p.Multiplier
		if wait >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return min(time.Duration(wait), p.MaxBackoff)
}
