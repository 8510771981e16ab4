package retry

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/config"
)

const (
	jitterFloor = 0.8
	jitterSpan  = 0.4
)

// Policy describes backoff behavior for one error category.
type Policy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Policies holds the per-category policy table and the jitter source.
type Policies struct {
	mu         sync.Mutex
	byCategory map[Category]Policy
	rng        *rand.Rand
}

// NewPolicies builds a policy table from configuration.
func NewPolicies(cfg map[string]config.RetryPolicy) *Policies {
	return NewPoliciesWithSeed(cfg, time.Now().UnixNano())
}

// NewPoliciesWithSeed builds a policy table with a deterministic jitter source.
// Tests use a fixed seed so delay calculations are reproducible.
func NewPoliciesWithSeed(cfg map[string]config.RetryPolicy, seed int64) *Policies {
	byCategory := make(map[Category]Policy, len(cfg))
	for name, policy := range cfg {
		byCategory[Category(name)] = Policy{
			MaxRetries:    policy.MaxRetries,
			BaseDelay:     time.Duration(policy.BaseDelay) * time.Second,
			MaxDelay:      time.Duration(policy.MaxDelay) * time.Second,
			BackoffFactor: policy.BackoffFactor,
		}
	}
	return &Policies{
		byCategory: byCategory,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Lookup returns the policy for a category, falling back to the transient
// policy for unknown categories.
func (p *Policies) Lookup(category Category) Policy {
	if policy, ok := p.byCategory[category]; ok {
		return policy
	}
	return p.byCategory[CategoryTransient]
}

// MaxRetries returns the retry budget for a category.
func (p *Policies) MaxRetries(category Category) int {
	return p.Lookup(category).MaxRetries
}

// Delay computes the backoff delay before retry attempt n (1-based). The first
// attempt of a task has no prior failure and gets zero delay. The result is
// base_delay * factor^(n-1) scaled by a jitter multiplier in [0.8, 1.2] and
// capped at max_delay.
func (p *Policies) Delay(category Category, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	policy := p.Lookup(category)
	if policy.BaseDelay <= 0 {
		return 0
	}

	delay := float64(policy.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= policy.BackoffFactor
		if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
			delay = float64(policy.MaxDelay)
			break
		}
	}

	p.mu.Lock()
	jitter := jitterFloor + p.rng.Float64()*jitterSpan
	p.mu.Unlock()

	delay *= jitter
	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	return time.Duration(delay)
}
