// Package retry classifies task failures into error categories and computes
// backoff-scheduled retry delays per category.
package retry

import (
	"errors"
	"strings"

	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Category buckets a failure for retry policy selection.
type Category string

const (
	CategoryTimeout   Category = "timeout"
	CategoryNetwork   Category = "network"
	CategoryRateLimit Category = "rate_limit"
	CategoryPermanent Category = "permanent"
	CategoryTransient Category = "transient"
)

// Keyword sets matched against failure messages, applied in priority order.
var (
	timeoutKeywords = []string{
		"timed out", "timeout", "deadline exceeded",
	}
	networkKeywords = []string{
		"connection refused", "connection reset", "no such host",
		"network is unreachable", "broken pipe", "dns", "unexpected eof",
	}
	rateLimitKeywords = []string{
		"rate limit", "too many requests", "429", "throttled",
	}
	permanentKeywords = []string{
		"not found", "404", "410", "gone", "401", "unauthorized",
		"403", "forbidden", "invalid url", "unsupported scheme",
	}
)

// Classify maps an error to its category. Sentinel markers take precedence
// over message matching.
func Classify(err error) Category {
	if err == nil {
		return CategoryTransient
	}
	switch {
	case errors.Is(err, services.ErrTimeout):
		return CategoryTimeout
	case errors.Is(err, services.ErrNetwork):
		return CategoryNetwork
	case errors.Is(err, services.ErrRateLimited):
		return CategoryRateLimit
	case errors.Is(err, services.ErrPermanent), errors.Is(err, services.ErrValidation):
		return CategoryPermanent
	}
	return ClassifyMessage(err.Error())
}

// ClassifyMessage maps a failure message to its category by keyword matching,
// applied in fixed priority order: timeout, network, rate_limit, permanent,
// then the transient fallback.
func ClassifyMessage(message string) Category {
	message = strings.ToLower(message)
	for _, group := range []struct {
		category Category
		keywords []string
	}{
		{CategoryTimeout, timeoutKeywords},
		{CategoryNetwork, networkKeywords},
		{CategoryRateLimit, rateLimitKeywords},
		{CategoryPermanent, permanentKeywords},
	} {
		for _, keyword := range group.keywords {
			if strings.Contains(message, keyword) {
				return group.category
			}
		}
	}
	return CategoryTransient
}
