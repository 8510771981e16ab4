package config

import (
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateDedup(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkerCount <= 0 {
		return fmt.Errorf("workflow.worker_count must be positive, got %d", c.Workflow.WorkerCount)
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return fmt.Errorf("workflow.queue_poll_interval must be positive, got %d", c.Workflow.QueuePollInterval)
	}
	if c.Workflow.TaskTimeout <= 0 {
		return fmt.Errorf("workflow.task_timeout must be positive, got %d", c.Workflow.TaskTimeout)
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return fmt.Errorf("workflow.heartbeat_timeout must be positive, got %d", c.Workflow.HeartbeatTimeout)
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MethodTimeout <= 0 {
		return fmt.Errorf("fetch.method_timeout must be positive, got %d", c.Fetch.MethodTimeout)
	}
	if c.Fetch.MinContentLength < 0 {
		return fmt.Errorf("fetch.min_content_length must not be negative, got %d", c.Fetch.MinContentLength)
	}
	return nil
}

func (c *Config) validateDedup() error {
	if c.Dedup.SimilarityThreshold <= 0 || c.Dedup.SimilarityThreshold > 1 {
		return fmt.Errorf("dedup.similarity_threshold must be in (0, 1], got %g", c.Dedup.SimilarityThreshold)
	}
	if c.Dedup.PrefixLength <= 0 {
		return fmt.Errorf("dedup.prefix_length must be positive, got %d", c.Dedup.PrefixLength)
	}
	if c.Dedup.MaxCandidates <= 0 {
		return fmt.Errorf("dedup.max_candidates must be positive, got %d", c.Dedup.MaxCandidates)
	}
	return nil
}

func (c *Config) validateRetry() error {
	for category, policy := range c.Retry {
		if policy.MaxRetries < 0 {
			return fmt.Errorf("retry.%s.max_retries must not be negative, got %d", category, policy.MaxRetries)
		}
		if policy.MaxRetries == 0 {
			continue
		}
		if policy.BaseDelay <= 0 {
			return fmt.Errorf("retry.%s.base_delay must be positive, got %d", category, policy.BaseDelay)
		}
		if policy.MaxDelay < policy.BaseDelay {
			return fmt.Errorf("retry.%s.max_delay must be >= base_delay", category)
		}
		if policy.BackoffFactor < 1 {
			return fmt.Errorf("retry.%s.backoff_factor must be >= 1, got %g", category, policy.BackoffFactor)
		}
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be positive, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.CooldownSeconds <= 0 {
		return fmt.Errorf("breaker.cooldown_seconds must be positive, got %d", c.Breaker.CooldownSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
