package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/services"
)

// Render delegates to an external headless-rendering service for pages that
// need script execution or credentialed sessions. The service accepts a JSON
// request and returns the rendered HTML.
type Render struct {
	client   *http.Client
	endpoint string
}

// NewRender builds the rendering method against a service endpoint.
func NewRender(client *http.Client, endpoint string) *Render {
	return &Render{client: client, endpoint: endpoint}
}

func (r *Render) Name() string { return pathway.MethodRender }

type renderRequest struct {
	URL string `json:"url"`
}

type renderResponse struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

func (r *Render) Fetch(ctx context.Context, target Target) (*Result, error) {
	if r.endpoint == "" {
		return nil, services.Wrap(services.ErrPermanent, "fetch", r.Name(), "render endpoint not configured", nil)
	}

	started := time.Now()
	payload, err := json.Marshal(renderRequest{URL: target.URL})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", r.Name(), "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, transportError(r.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

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

	var rendered renderResponse
	if err := json.Unmarshal(body, &rendered); err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", r.Name(), "decode response", err)
	}
	if rendered.HTML == "" {
		return nil, services.Wrap(services.ErrTransient, "fetch", r.Name(), "empty rendered page", nil)
	}

	title, text, err := extractDocument(rendered.HTML)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", r.Name(), "parse rendered page", err)
	}

	resolvedURL := rendered.URL
	if resolvedURL == "" {
		resolvedURL = target.URL
	}
	return &Result{
		Method:      r.Name(),
		Title:       title,
		Content:     text,
		ResolvedURL: resolvedURL,
		Duration:    time.Since(started),
	}, nil
}
