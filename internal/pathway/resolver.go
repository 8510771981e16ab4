// Package pathway computes the ordered fallback chain of retrieval methods for
// a content item based on its domain and locally available credentials.
package pathway

import (
	"errors"
	"net/url"
	"strings"

	"github.com/Khamel83/atlas-sub014/internal/config"
)

// Retrieval method names, in rough order of expected content quality.
const (
	MethodDirect       = "direct"
	MethodRender       = "render"
	MethodArchiveToday = "archive_today"
	MethodWayback      = "wayback"
	MethodResurrect    = "resurrect"
)

// SourceKind identifies what sort of content an item carries.
type SourceKind string

const (
	KindArticle SourceKind = "article"
	KindEpisode SourceKind = "episode"
	KindPage    SourceKind = "page"
)

// Resolver derives fallback chains from configured domain allow-lists. It is
// deterministic and performs no I/O; resolving the same (domain, credentials)
// pair twice returns the same ordered list.
type Resolver struct {
	paywalled       map[string]struct{}
	archiveFriendly map[string]struct{}
	directOverrides map[string]string
}

// NewResolver builds a resolver from the pathway configuration.
func NewResolver(cfg *config.Config) *Resolver {
	r := &Resolver{
		paywalled:       make(map[string]struct{}, len(cfg.Pathway.PaywalledDomains)),
		archiveFriendly: make(map[string]struct{}, len(cfg.Pathway.ArchiveFriendly)),
		directOverrides: make(map[string]string, len(cfg.Pathway.DirectOverrides)),
	}
	for _, domain := range cfg.Pathway.PaywalledDomains {
		r.paywalled[domain] = struct{}{}
	}
	for _, domain := range cfg.Pathway.ArchiveFriendly {
		r.archiveFriendly[domain] = struct{}{}
	}
	for domain, method := range cfg.Pathway.DirectOverrides {
		r.directOverrides[domain] = method
	}
	return r
}

// Resolve returns the ordered fallback chain for a domain. Every chain starts
// with the direct fetch and ends with the resurrection lookup; the minimum
// chain for an unknown domain is [direct, wayback, resurrect].
func (r *Resolver) Resolve(domain string, kind SourceKind, credentialsAvailable bool) []string {
	domain = normalizeDomain(domain)

	chain := make([]string, 0, 5)
	chain = append(chain, MethodDirect)

	if _, gated := r.paywalled[domain]; gated || credentialsAvailable {
		chain = append(chain, MethodRender)
	}

	if _, friendly := r.archiveFriendly[domain]; friendly {
		chain = append(chain, MethodArchiveToday, MethodWayback)
	} else {
		chain = append(chain, MethodWayback)
	}

	return append(chain, MethodResurrect)
}

// DirectSource returns the configured high-quality direct source for a domain,
// if one exists. The fetch layer uses it to specialize the direct method.
func (r *Resolver) DirectSource(domain string) (string, bool) {
	method, ok := r.directOverrides[normalizeDomain(domain)]
	return method, ok
}

// DomainOf extracts the normalized domain from a URL.
func DomainOf(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("unsupported scheme")
	}
	host := parsed.Hostname()
	if host == "" {
		return "", errors.New("url has no host")
	}
	return normalizeDomain(host), nil
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	return strings.TrimPrefix(domain, "www.")
}
