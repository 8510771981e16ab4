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

// ArchiveToday fetches the newest mirror-archive snapshot of a page. The
// endpoint template carries the target URL and returns archived HTML directly.
type ArchiveToday struct {
	client    *http.Client
	template  string
	userAgent string
}

// NewArchiveToday builds the method against a snapshot URL template.
func NewArchiveToday(client *http.Client, template, userAgent string) *ArchiveToday {
	return &ArchiveToday{client: client, template: template, userAgent: userAgent}
}

func (a *ArchiveToday) Name() string { return pathway.MethodArchiveToday }

func (a *ArchiveToday) Fetch(ctx context.Context, target Target) (*Result, error) {
	if a.template == "" {
		return nil, services.Wrap(services.ErrPermanent, "fetch", a.Name(), "archive endpoint not configured", nil)
	}

	started := time.Now()
	snapshotURL := expandTemplate(a.template, target.URL)
	title, text, resolvedURL, err := fetchAndExtract(ctx, a.client, a.Name(), snapshotURL, a.userAgent)
	if err != nil {
		return nil, err
	}
	return &Result{
		Method:      a.Name(),
		Title:       title,
		Content:     text,
		ResolvedURL: resolvedURL,
		Duration:    time.Since(started),
	}, nil
}

// Wayback resolves the closest snapshot through the availability API, then
// fetches the snapshot itself.
type Wayback struct {
	client    *http.Client
	template  string
	userAgent string
}

// NewWayback builds the method against an availability API URL template.
func NewWayback(client *http.Client, template, userAgent string) *Wayback {
	return &Wayback{client: client, template: template, userAgent: userAgent}
}

func (w *Wayback) Name() string { return pathway.MethodWayback }

type waybackResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

func (w *Wayback) Fetch(ctx context.Context, target Target) (*Result, error) {
	if w.template == "" {
		return nil, services.Wrap(services.ErrPermanent, "fetch", w.Name(), "wayback endpoint not configured", nil)
	}

	started := time.Now()
	lookupURL := expandTemplate(w.template, target.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, transportError(w.Name(), err)
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, transportError(w.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(w.Name(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportError(w.Name(), err)
	}

	var lookup waybackResponse
	if err := json.Unmarshal(body, &lookup); err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", w.Name(), "decode availability response", err)
	}
	closest := lookup.ArchivedSnapshots.Closest
	if !closest.Available || closest.URL == "" {
		return nil, services.Wrap(services.ErrPermanent, "fetch", w.Name(), "no snapshot available", nil)
	}

	title, text, resolvedURL, err := fetchAndExtract(ctx, w.client, w.Name(), closest.URL, w.userAgent)
	if err != nil {
		return nil, err
	}
	return &Result{
		Method:      w.Name(),
		Title:       title,
		Content:     text,
		ResolvedURL: resolvedURL,
		Duration:    time.Since(started),
	}, nil
}
