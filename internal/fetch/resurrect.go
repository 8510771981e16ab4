package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Resurrect is the terminal fallback: a URL-history service maps a dead URL
// to a known alternate location, which is then fetched directly.
type Resurrect struct {
	client    *http.Client
	template  string
	userAgent string
}

// NewResurrect builds the method against a URL-history lookup template.
func NewResurrect(client *http.Client, template, userAgent string) *Resurrect {
	return &Resurrect{client: client, template: template, userAgent: userAgent}
}

func (r *Resurrect) Name() string { return pathway.MethodResurrect }

type resurrectResponse struct {
	URL string `json:"url"`
}

func (r *Resurrect) Fetch(ctx context.Context, target Target) (*Result, error) {
	if r.template == "" {
		return nil, services.Wrap(services.ErrPermanent, "fetch", r.Name(), "resurrect endpoint not configured", nil)
	}

	started := time.Now()
	lookupURL := expandTemplate(r.template, target.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, transportError(r.Name(), err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, transportError(r.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(r.Name(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(r.Name(), err)
	}

	var lookup resurrectResponse
	if err := json.Unmarshal(body, &lookup); err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", r.Name(), "decode lookup response", err)
	}
	if lookup.URL == "" {
		return nil, services.Wrap(services.ErrPermanent, "fetch", r.Name(), "no alternate location known", nil)
	}

	title, text, resolvedURL, err := fetchAndExtract(ctx, r.client, r.Name(), lookup.URL, r.userAgent)
	if err != nil {
		return nil, err
	}
	return &Result{
		Method:      r.Name(),
		Title:       title,
		Content:     text,
		ResolvedURL: resolvedURL,
		Duration:    time.Since(started),
	}, nil
}
