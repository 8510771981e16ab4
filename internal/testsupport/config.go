package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.QueuePollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithMinContentLength overrides the fetch content gate on the test config.
func WithMinContentLength(length int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Fetch.MinContentLength = length
	}
}

// WithBreaker overrides the circuit breaker tuning on the test config.
func WithBreaker(threshold, cooldownSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Breaker.FailureThreshold = threshold
		b.cfg.Breaker.CooldownSeconds = cooldownSeconds
	}
}

// WithPaywalledDomains marks domains as paywalled on the test config.
func WithPaywalledDomains(domains ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pathway.PaywalledDomains = domains
	}
}

// WithRetryPolicy replaces one retry category's policy on the test config.
func WithRetryPolicy(category string, policy config.RetryPolicy) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry[category] = policy
	}
}
