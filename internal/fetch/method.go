package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Target identifies what a method should retrieve.
type Target struct {
	ItemID string
	URL    string
	Domain string
	Kind   pathway.SourceKind

	// DirectSource, when set, names the high-quality source URL template the
	// direct method uses instead of the canonical URL.
	DirectSource string
}

// Result is one successful retrieval.
type Result struct {
	Method      string
	Title       string
	Content     string
	ResolvedURL string
	Duration    time.Duration
}

// Method is a single retrieval strategy in a fallback chain.
type Method interface {
	Name() string
	Fetch(ctx context.Context, target Target) (*Result, error)
}

// expandTemplate substitutes the target URL into an endpoint template. A
// template without a {url} placeholder gets the escaped URL appended.
func expandTemplate(template, rawURL string) string {
	escaped := url.QueryEscape(rawURL)
	if strings.Contains(template, "{url}") {
		return strings.ReplaceAll(template, "{url}", escaped)
	}
	return template + escaped
}

// statusError maps an HTTP status to a tagged failure so retry classification
// can pick the right category without parsing message text.
func statusError(method string, status int) error {
	message := fmt.Sprintf("status %d", status)
	switch {
	case status == 401 || status == 403 || status == 404 || status == 410:
		return services.Wrap(services.ErrPermanent, "fetch", method, message, nil)
	case status == 429:
		return services.Wrap(services.ErrRateLimited, "fetch", method, message, nil)
	case status == 408:
		return services.Wrap(services.ErrTimeout, "fetch", method, message, nil)
	case status >= 500:
		return services.Wrap(services.ErrTransient, "fetch", method, message, nil)
	default:
		return services.Wrap(services.ErrTransient, "fetch", method, message, nil)
	}
}

// transportError tags a client-side failure from the HTTP round trip.
func transportError(method string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "fetch", method, "request timed out", err)
	case isNetworkError(err):
		return services.Wrap(services.ErrNetwork, "fetch", method, "transport failure", err)
	default:
		return services.Wrap(services.ErrTransient, "fetch", method, "request failed", err)
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
