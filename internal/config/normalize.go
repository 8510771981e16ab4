package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDomains()
	c.normalizeRetry()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDomains() {
	c.Pathway.PaywalledDomains = lowerAll(c.Pathway.PaywalledDomains)
	c.Pathway.CredentialedDomains = lowerAll(c.Pathway.CredentialedDomains)
	c.Pathway.ArchiveFriendly = lowerAll(c.Pathway.ArchiveFriendly)

	if len(c.Pathway.DirectOverrides) > 0 {
		normalized := make(map[string]string, len(c.Pathway.DirectOverrides))
		for domain, method := range c.Pathway.DirectOverrides {
			domain = strings.ToLower(strings.TrimSpace(domain))
			method = strings.TrimSpace(method)
			if domain == "" || method == "" {
				continue
			}
			normalized[domain] = method
		}
		c.Pathway.DirectOverrides = normalized
	}
}

// normalizeRetry fills in categories missing from a user-supplied table so a
// partial [retry] section never drops a category.
func (c *Config) normalizeRetry() {
	defaults := defaultRetryPolicies()
	if c.Retry == nil {
		c.Retry = defaults
		return
	}
	for category, policy := range defaults {
		if _, ok := c.Retry[category]; !ok {
			c.Retry[category] = policy
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lowerAll(values []string) []string {
	out := values[:0]
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
