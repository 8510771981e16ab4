package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow contains worker pool timing and sizing.
type Workflow struct {
	WorkerCount        int `toml:"worker_count"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	TaskTimeout        int `toml:"task_timeout"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Fetch contains retrieval method settings.
type Fetch struct {
	MethodTimeout    int    `toml:"method_timeout"`
	MinContentLength int    `toml:"min_content_length"`
	UserAgent        string `toml:"user_agent"`
	RenderEndpoint   string `toml:"render_endpoint"`
	ArchiveTodayURL  string `toml:"archive_today_url"`
	WaybackURL       string `toml:"wayback_url"`
	ResurrectURL     string `toml:"resurrect_url"`
}

// Pathway contains domain allow-lists driving fallback chain resolution.
type Pathway struct {
	DirectOverrides     map[string]string `toml:"direct_overrides"`
	PaywalledDomains    []string          `toml:"paywalled_domains"`
	CredentialedDomains []string          `toml:"credentialed_domains"`
	ArchiveFriendly     []string          `toml:"archive_friendly_domains"`
}

// Fingerprint pairs an error-page phrase with its score penalty.
type Fingerprint struct {
	Phrase string  `toml:"phrase"`
	Weight float64 `toml:"weight"`
}

// Quality contains classifier fingerprints and penalty tuning.
type Quality struct {
	Fingerprints      []Fingerprint `toml:"fingerprints"`
	FeedIndicators    []string      `toml:"feed_indicators"`
	TruncationPhrases []string      `toml:"truncation_phrases"`
}

// Dedup contains duplicate detection settings.
type Dedup struct {
	SimilarityThreshold float64  `toml:"similarity_threshold"`
	PrefixLength        int      `toml:"prefix_length"`
	MaxCandidates       int      `toml:"max_candidates"`
	GarbagePhrases      []string `toml:"garbage_phrases"`
	MinBodyLength       int      `toml:"min_body_length"`
}

// RetryPolicy describes backoff behavior for one error category.
type RetryPolicy struct {
	MaxRetries    int     `toml:"max_retries"`
	BaseDelay     int     `toml:"base_delay"`
	MaxDelay      int     `toml:"max_delay"`
	BackoffFactor float64 `toml:"backoff_factor"`
}

// Breaker contains circuit breaker tuning.
type Breaker struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

// Config encapsulates all configuration values for Atlas.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Workflow: worker pool sizing and polling intervals
//   - Fetch: per-method timeouts, content gate, retrieval endpoints
//   - Pathway: domain allow-lists for fallback chain resolution
//   - Quality: error-page fingerprints and content indicators
//   - Dedup: similarity threshold and candidate bucketing
//   - Retry: per-category backoff policy table
//   - Breaker: circuit breaker threshold and cooldown
//   - Logging: log format and level
type Config struct {
	Paths    Paths                  `toml:"paths"`
	Workflow Workflow               `toml:"workflow"`
	Fetch    Fetch                  `toml:"fetch"`
	Pathway  Pathway                `toml:"pathway"`
	Quality  Quality                `toml:"quality"`
	Dedup    Dedup                  `toml:"dedup"`
	Retry    map[string]RetryPolicy `toml:"retry"`
	Breaker  Breaker                `toml:"breaker"`
	Logging  Logging                `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/atlas/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("atlas.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the path of the task queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// DedupDBPath returns the path of the duplicate index database.
func (c *Config) DedupDBPath() string {
	return filepath.Join(c.Paths.StateDir, "dedup.db")
}

// ContentDBPath returns the path of the content store database.
func (c *Config) ContentDBPath() string {
	return filepath.Join(c.Paths.StateDir, "content.db")
}

// HasCredentials reports whether locally stored credentials exist for a domain.
func (c *Config) HasCredentials(domain string) bool {
	domain = strings.ToLower(strings.TrimSpace(domain))
	for _, candidate := range c.Pathway.CredentialedDomains {
		if strings.EqualFold(candidate, domain) {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
