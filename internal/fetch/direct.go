package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Khamel83/atlas-sub014/internal/pathway"
)

// maxBodyBytes bounds how much of a response body is read. Pages larger than
// this are truncated, not rejected.
const maxBodyBytes = 10 << 20

// Direct fetches the canonical URL with a plain HTTP GET. For domains with a
// configured high-quality source the request goes there instead.
type Direct struct {
	client    *http.Client
	userAgent string
}

// NewDirect builds the direct method sharing the given HTTP client.
func NewDirect(client *http.Client, userAgent string) *Direct {
	return &Direct{client: client, userAgent: userAgent}
}

func (d *Direct) Name() string { return pathway.MethodDirect }

func (d *Direct) Fetch(ctx context.Context, target Target) (*Result, error) {
	requestURL := target.URL
	if target.DirectSource != "" {
		requestURL = expandTemplate(target.DirectSource, target.URL)
	}

	started := time.Now()
	title, text, resolvedURL, err := fetchAndExtract(ctx, d.client, d.Name(), requestURL, d.userAgent)
	if err != nil {
		return nil, err
	}
	return &Result{
		Method:      d.Name(),
		Title:       title,
		Content:     text,
		ResolvedURL: resolvedURL,
		Duration:    time.Since(started),
	}, nil
}

// fetchAndExtract performs a GET and reduces the payload to title and text.
// It is shared by every method that ends in a plain page fetch.
func fetchAndExtract(ctx context.Context, client *http.Client, method, requestURL, userAgent string) (title, text, resolvedURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", "", "", transportError(method, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", "", "", transportError(method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", "", statusError(method, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", "", transportError(method, err)
	}

	resolvedURL = requestURL
	if resp.Request != nil && resp.Request.URL != nil {
		resolvedURL = resp.Request.URL.String()
	}

	payload := string(body)
	if looksLikeHTML(resp.Header.Get("Content-Type"), payload) {
		title, text, err = extractDocument(payload)
		if err != nil {
			return "", "", "", transportError(method, err)
		}
		return title, text, resolvedURL, nil
	}
	return "", collapseWhitespace(payload), resolvedURL, nil
}
