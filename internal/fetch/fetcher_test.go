package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/fetch"
	"github.com/Khamel83/atlas-sub014/internal/retry"
	"github.com/Khamel83/atlas-sub014/internal/services"
	"github.com/Khamel83/atlas-sub014/internal/testsupport"
)

// stubMethod is a scripted Method for chain mechanics tests.
type stubMethod struct {
	name    string
	content string
	err     error
	calls   int
}

func (m *stubMethod) Name() string { return m.name }

func (m *stubMethod) Fetch(_ context.Context, _ fetch.Target) (*fetch.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &fetch.Result{Method: m.name, Content: m.content}, nil
}

func newFetcher(t *testing.T, minLength int, methods ...fetch.Method) *fetch.Fetcher {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMinContentLength(minLength))
	return fetch.NewFetcher(cfg, nil, methods...)
}

func TestFetchShortCircuitsOnSuccess(t *testing.T) {
	direct := &stubMethod{name: "direct", err: services.Wrap(services.ErrTransient, "fetch", "direct", "503", nil)}
	wayback := &stubMethod{name: "wayback", content: strings.Repeat("recovered text ", 10)}
	resurrect := &stubMethod{name: "resurrect", content: "never reached"}

	fetcher := newFetcher(t, 10, direct, wayback, resurrect)
	result, attempts, err := fetcher.Fetch(context.Background(), fetch.Target{URL: "https://example.com/a"}, []string{"direct", "wayback", "resurrect"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Method != "wayback" {
		t.Errorf("result method = %s, want wayback", result.Method)
	}
	if resurrect.calls != 0 {
		t.Errorf("resurrect called %d times after an earlier success", resurrect.calls)
	}

	// Audit trail covers the failure and the success.
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}
	if attempts[0].Method != "direct" || attempts[0].Err == nil {
		t.Errorf("first attempt = %+v, want failed direct", attempts[0])
	}
	if attempts[1].Method != "wayback" || attempts[1].Err != nil {
		t.Errorf("second attempt = %+v, want successful wayback", attempts[1])
	}
}

func TestFetchRejectsThinContent(t *testing.T) {
	direct := &stubMethod{name: "direct", content: "thin"}
	wayback := &stubMethod{name: "wayback", content: strings.Repeat("substantial text ", 20)}

	fetcher := newFetcher(t, 100, direct, wayback)
	result, attempts, err := fetcher.Fetch(context.Background(), fetch.Target{URL: "https://example.com/a"}, []string{"direct", "wayback"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Method != "wayback" {
		t.Fatalf("result method = %s, want wayback after thin direct content", result.Method)
	}
	if attempts[0].Err == nil {
		t.Fatal("thin content attempt recorded as success")
	}
	if got := retry.Classify(attempts[0].Err); got != retry.CategoryTransient {
		t.Errorf("thin content classified as %s, want transient", got)
	}
}

func TestFetchAllMethodsFail(t *testing.T) {
	direct := &stubMethod{name: "direct", err: services.Wrap(services.ErrNetwork, "fetch", "direct", "refused", nil)}
	wayback := &stubMethod{name: "wayback", err: services.Wrap(services.ErrPermanent, "fetch", "wayback", "no snapshot available", nil)}

	fetcher := newFetcher(t, 10, direct, wayback)
	result, attempts, err := fetcher.Fetch(context.Background(), fetch.Target{URL: "https://example.com/a"}, []string{"direct", "wayback"})
	if result != nil {
		t.Fatalf("result = %+v, want nil", result)
	}
	if len(attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(attempts))
	}

	var chainErr *fetch.ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("err = %T, want *ChainError", err)
	}
	if len(chainErr.Attempts) != 2 {
		t.Errorf("chain attempts = %d, want 2", len(chainErr.Attempts))
	}
	// Classification follows the last failure in the chain.
	if got := retry.Classify(err); got != retry.CategoryPermanent {
		t.Errorf("chain classified as %s, want permanent", got)
	}
}

func TestFetchUnknownMethodInChain(t *testing.T) {
	wayback := &stubMethod{name: "wayback", content: strings.Repeat("content ", 20)}

	fetcher := newFetcher(t, 10, wayback)
	result, attempts, err := fetcher.Fetch(context.Background(), fetch.Target{URL: "https://example.com/a"}, []string{"telnet", "wayback"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Method != "wayback" {
		t.Fatalf("result method = %s, want wayback", result.Method)
	}
	if len(attempts) != 2 || attempts[0].Err == nil {
		t.Fatalf("attempts = %+v, want failed telnet then successful wayback", attempts)
	}
	if !errors.Is(attempts[0].Err, services.ErrValidation) {
		t.Errorf("unknown method error = %v, want validation marker", attempts[0].Err)
	}
}

func TestFetchEmptyChain(t *testing.T) {
	fetcher := newFetcher(t, 10)
	_, _, err := fetcher.Fetch(context.Background(), fetch.Target{URL: "https://example.com/a"}, nil)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want validation marker", err)
	}
}

func TestDirectFetchExtractsDocument(t *testing.T) {
	var gotUserAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Test Page</title><script>ignored()</script></head>` +
			`<body><nav>menu</nav><p>First paragraph of real text.</p><p>Second paragraph.</p></body></html>`))
	}))
	defer server.Close()

	direct := fetch.NewDirect(server.Client(), "atlas-test/1.0")
	result, err := direct.Fetch(context.Background(), fetch.Target{URL: server.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotUserAgent != "atlas-test/1.0" {
		t.Errorf("user agent = %q, want atlas-test/1.0", gotUserAgent)
	}
	if result.Title != "Test Page" {
		t.Errorf("title = %q, want Test Page", result.Title)
	}
	if strings.Contains(result.Content, "ignored()") || strings.Contains(result.Content, "menu") {
		t.Errorf("content = %q, script and nav text should be stripped", result.Content)
	}
	if !strings.Contains(result.Content, "First paragraph of real text.") {
		t.Errorf("content = %q, want body text", result.Content)
	}
}

func TestDirectFetchKeepsParagraphBoundaries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Boundaries</title></head><body>` +
			`<h1>A heading</h1>` +
			`<p>First paragraph ends here.</p>` +
			`<p>Second paragraph starts fresh.</p>` +
			`<ul><li>One item</li><li>Another item</li></ul>` +
			`</body></html>`))
	}))
	defer server.Close()

	direct := fetch.NewDirect(server.Client(), "atlas-test/1.0")
	result, err := direct.Fetch(context.Background(), fetch.Target{URL: server.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "A heading\n\nFirst paragraph ends here.\n\nSecond paragraph starts fresh.\n\nOne item\n\nAnother item"
	if result.Content != want {
		t.Errorf("content = %q, want %q", result.Content, want)
	}
	if strings.Contains(result.Content, "here.Second") {
		t.Errorf("content = %q, paragraphs fused without separator", result.Content)
	}
}

func TestDirectFetchStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   retry.Category
	}{
		{http.StatusNotFound, retry.CategoryPermanent},
		{http.StatusForbidden, retry.CategoryPermanent},
		{http.StatusTooManyRequests, retry.CategoryRateLimit},
		{http.StatusRequestTimeout, retry.CategoryTimeout},
		{http.StatusInternalServerError, retry.CategoryTransient},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))

		direct := fetch.NewDirect(server.Client(), "")
		_, err := direct.Fetch(context.Background(), fetch.Target{URL: server.URL})
		server.Close()
		if err == nil {
			t.Errorf("status %d: fetch succeeded", tt.status)
			continue
		}
		if got := retry.Classify(err); got != tt.want {
			t.Errorf("status %d classified as %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestDirectFetchUsesDirectSourceTemplate(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain text body"))
	}))
	defer server.Close()

	direct := fetch.NewDirect(server.Client(), "")
	result, err := direct.Fetch(context.Background(), fetch.Target{
		URL:          "https://example.com/post",
		DirectSource: server.URL + "/mirror?source={url}",
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(gotPath, "source=https%3A%2F%2Fexample.com%2Fpost") {
		t.Errorf("request path = %q, want escaped source URL", gotPath)
	}
	if result.Content != "plain text body" {
		t.Errorf("content = %q, want plain text body", result.Content)
	}
}
