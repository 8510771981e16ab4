package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "zero workers",
			mutate: func(c *config.Config) { c.Workflow.WorkerCount = 0 },
			want:   "worker_count",
		},
		{
			name:   "zero poll interval",
			mutate: func(c *config.Config) { c.Workflow.QueuePollInterval = 0 },
			want:   "queue_poll_interval",
		},
		{
			name:   "zero method timeout",
			mutate: func(c *config.Config) { c.Fetch.MethodTimeout = 0 },
			want:   "method_timeout",
		},
		{
			name:   "similarity above one",
			mutate: func(c *config.Config) { c.Dedup.SimilarityThreshold = 1.5 },
			want:   "similarity_threshold",
		},
		{
			name: "retry max below base",
			mutate: func(c *config.Config) {
				c.Retry["transient"] = config.RetryPolicy{MaxRetries: 2, BaseDelay: 60, MaxDelay: 30, BackoffFactor: 2}
			},
			want: "max_delay",
		},
		{
			name: "backoff factor below one",
			mutate: func(c *config.Config) {
				c.Retry["network"] = config.RetryPolicy{MaxRetries: 2, BaseDelay: 10, MaxDelay: 60, BackoffFactor: 0.5}
			},
			want: "backoff_factor",
		},
		{
			name:   "zero breaker threshold",
			mutate: func(c *config.Config) { c.Breaker.FailureThreshold = 0 },
			want:   "failure_threshold",
		},
		{
			name:   "unknown log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("validation passed")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	cfg, resolvedPath, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Error("missing file reported as existing")
	}
	if resolvedPath != path {
		t.Errorf("resolved path = %s, want %s", resolvedPath, path)
	}
	if cfg.Workflow.WorkerCount <= 0 {
		t.Errorf("worker count = %d, want default", cfg.Workflow.WorkerCount)
	}
	if len(cfg.Retry) < 5 {
		t.Errorf("retry table has %d categories, want the full default set", len(cfg.Retry))
	}
}

func TestLoadOverridesAndFillsRetryTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.toml")
	content := `
[workflow]
worker_count = 2

[pathway]
paywalled_domains = ["  NYTimes.com ", "wsj.com"]

[retry.timeout]
max_retries = 1
base_delay = 5
max_delay = 10
backoff_factor = 2.0

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("existing file reported missing")
	}
	if cfg.Workflow.WorkerCount != 2 {
		t.Errorf("worker count = %d, want 2", cfg.Workflow.WorkerCount)
	}
	if cfg.Workflow.TaskTimeout <= 0 {
		t.Errorf("task timeout = %d, want default preserved", cfg.Workflow.TaskTimeout)
	}

	// Domains are trimmed and lowercased.
	if len(cfg.Pathway.PaywalledDomains) != 2 || cfg.Pathway.PaywalledDomains[0] != "nytimes.com" {
		t.Errorf("paywalled domains = %v, want normalized", cfg.Pathway.PaywalledDomains)
	}

	// The overridden category sticks; untouched categories come from defaults.
	if got := cfg.Retry["timeout"].MaxRetries; got != 1 {
		t.Errorf("timeout max retries = %d, want 1", got)
	}
	if _, ok := cfg.Retry["network"]; !ok {
		t.Error("network category missing from a partial retry table")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %s, want json", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.toml")
	if err := os.WriteFile(path, []byte("[workflow]\nworker_count = -3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("load accepted a negative worker count")
	}
}

func TestHasCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.Pathway.CredentialedDomains = []string{"members.example.com"}

	if !cfg.HasCredentials("Members.Example.com") {
		t.Error("case-insensitive credential lookup failed")
	}
	if cfg.HasCredentials("example.com") {
		t.Error("credential lookup matched an unlisted domain")
	}
}

func TestDBPathsShareStateDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = "/tmp/atlas-state"

	if got := cfg.QueueDBPath(); got != filepath.Join("/tmp/atlas-state", "queue.db") {
		t.Errorf("queue db path = %s", got)
	}
	if got := cfg.DedupDBPath(); got != filepath.Join("/tmp/atlas-state", "dedup.db") {
		t.Errorf("dedup db path = %s", got)
	}
	if got := cfg.ContentDBPath(); got != filepath.Join("/tmp/atlas-state", "content.db") {
		t.Errorf("content db path = %s", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := config.CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("overwriting an existing config succeeded")
	}

	// The sample file itself must load cleanly.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
