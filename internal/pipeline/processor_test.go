package pipeline_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/contentstore"
	"github.com/Khamel83/atlas-sub014/internal/dedup"
	"github.com/Khamel83/atlas-sub014/internal/fetch"
	"github.com/Khamel83/atlas-sub014/internal/pathway"
	"github.com/Khamel83/atlas-sub014/internal/pipeline"
	"github.com/Khamel83/atlas-sub014/internal/quality"
	"github.com/Khamel83/atlas-sub014/internal/queue"
	"github.com/Khamel83/atlas-sub014/internal/retry"
	"github.com/Khamel83/atlas-sub014/internal/testsupport"
)

type testPipeline struct {
	cfg       *config.Config
	store     *queue.Store
	content   *contentstore.SQLiteStore
	processor *pipeline.Processor
}

// newPipeline wires a processor over real stores, with the direct method
// pointed at a local test server via its shared client.
func newPipeline(t *testing.T, client *http.Client) *testPipeline {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMinContentLength(10))
	store := testsupport.MustOpenStore(t, cfg)

	engine, err := dedup.Open(cfg)
	if err != nil {
		t.Fatalf("open dedup engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	content, err := contentstore.Open(cfg)
	if err != nil {
		t.Fatalf("open content store: %v", err)
	}
	t.Cleanup(func() { _ = content.Close() })

	fetcher := fetch.NewFetcher(cfg, nil, fetch.NewDirect(client, cfg.Fetch.UserAgent))
	processor := pipeline.NewProcessor(
		cfg,
		store,
		pathway.NewResolver(cfg),
		fetcher,
		quality.NewClassifier(cfg),
		engine,
		content,
		nil,
	)
	return &testPipeline{cfg: cfg, store: store, content: content, processor: processor}
}

func (tp *testPipeline) addItem(t *testing.T, sourceURL string) (*queue.Item, *queue.Task) {
	t.Helper()
	item, task, err := tp.store.NewItem(context.Background(), sourceURL, "example.com", "article", []string{"direct"}, 0)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	return item, task
}

func articleHTML(body string) string {
	return `<html><head><title>Worth Reading</title></head><body><p>` +
		strings.ReplaceAll(body, "\n\n", "</p><p>") + `</p></body></html>`
}

func longArticleBody() string {
	sentence := "The committee spent a full year reviewing the proposal before anyone voted on it. "
	var b strings.Builder
	for paragraph := 0; paragraph < 4; paragraph++ {
		if paragraph > 0 {
			b.WriteString("\n\n")
		}
		for i := 0; i < 5; i++ {
			b.WriteString(sentence)
		}
	}
	return b.String()
}

func TestProcessAcceptsGoodContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML(longArticleBody())))
	}))
	defer server.Close()

	tp := newPipeline(t, server.Client())
	ctx := context.Background()
	item, task := tp.addItem(t, server.URL+"/story")

	if err := tp.processor.Process(ctx, task); err != nil {
		t.Fatalf("process: %v", err)
	}

	loaded, err := tp.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if loaded.Status != queue.ItemAccepted {
		t.Fatalf("item status = %s, want accepted", loaded.Status)
	}
	if loaded.ContentHash == "" {
		t.Error("accepted item has no content hash")
	}
	if loaded.QualityTier != string(quality.TierExcellent) && loaded.QualityTier != string(quality.TierGood) {
		t.Errorf("quality tier = %s, want a storing tier", loaded.QualityTier)
	}

	count, err := tp.content.Count(ctx)
	if err != nil {
		t.Fatalf("content count: %v", err)
	}
	if count != 1 {
		t.Errorf("stored entries = %d, want 1", count)
	}

	attempts, err := tp.store.AttemptsForItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Outcome != queue.AttemptSuccess {
		t.Errorf("attempts = %+v, want one success", attempts)
	}
}

func TestProcessMarksSecondCopyDuplicate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML(longArticleBody())))
	}))
	defer server.Close()

	tp := newPipeline(t, server.Client())
	ctx := context.Background()

	first, firstTask := tp.addItem(t, server.URL+"/story")
	if err := tp.processor.Process(ctx, firstTask); err != nil {
		t.Fatalf("process first: %v", err)
	}

	second, secondTask := tp.addItem(t, server.URL+"/story-syndicated")
	if err := tp.processor.Process(ctx, secondTask); err != nil {
		t.Fatalf("process second: %v", err)
	}

	loaded, err := tp.store.GetItem(ctx, second.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if loaded.Status != queue.ItemDuplicate {
		t.Fatalf("second item status = %s, want duplicate", loaded.Status)
	}
	if !strings.Contains(loaded.ErrorMessage, first.ID) {
		t.Errorf("duplicate reason = %q, want reference to canonical %s", loaded.ErrorMessage, first.ID)
	}

	count, err := tp.content.Count(ctx)
	if err != nil {
		t.Fatalf("content count: %v", err)
	}
	if count != 1 {
		t.Errorf("stored entries = %d, want 1", count)
	}
}

func TestProcessRejectsLowQualityContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Story</title></head>` +
			`<body><p>Subscribe to continue reading this article.</p></body></html>`))
	}))
	defer server.Close()

	tp := newPipeline(t, server.Client())
	ctx := context.Background()
	item, task := tp.addItem(t, server.URL+"/paywalled")

	if err := tp.processor.Process(ctx, task); err != nil {
		t.Fatalf("process: %v", err)
	}

	loaded, err := tp.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if loaded.Status != queue.ItemRejected {
		t.Fatalf("item status = %s, want rejected", loaded.Status)
	}
	if loaded.QualityScore >= 0.4 {
		t.Errorf("quality score = %.2f, want a rejection-band score", loaded.QualityScore)
	}

	count, err := tp.content.Count(ctx)
	if err != nil {
		t.Fatalf("content count: %v", err)
	}
	if count != 0 {
		t.Errorf("stored entries = %d, rejected content must not be stored", count)
	}
}

func TestProcessPropagatesFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tp := newPipeline(t, server.Client())
	ctx := context.Background()
	item, task := tp.addItem(t, server.URL+"/gone")

	err := tp.processor.Process(ctx, task)
	if err == nil {
		t.Fatal("process succeeded against a 404")
	}
	if got := retry.Classify(err); got != retry.CategoryPermanent {
		t.Errorf("failure classified as %s, want permanent", got)
	}

	loaded, getErr := tp.store.GetItem(ctx, item.ID)
	if getErr != nil {
		t.Fatalf("get item: %v", getErr)
	}
	if loaded.ErrorMessage == "" {
		t.Error("failed item carries no error message")
	}

	attempts, attemptsErr := tp.store.AttemptsForItem(ctx, item.ID)
	if attemptsErr != nil {
		t.Fatalf("attempts: %v", attemptsErr)
	}
	if len(attempts) != 1 || attempts[0].Outcome != queue.AttemptFailure {
		t.Errorf("attempts = %+v, want one recorded failure", attempts)
	}
}

func TestProcessResolvesChainWhenMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(articleHTML(longArticleBody())))
	}))
	defer server.Close()

	tp := newPipeline(t, server.Client())
	ctx := context.Background()

	item, task, err := tp.store.NewItem(ctx, server.URL+"/story", "example.com", "article", nil, 0)
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	if err := tp.processor.Process(ctx, task); err != nil {
		t.Fatalf("process: %v", err)
	}

	loaded, err := tp.store.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if len(loaded.Pathway) == 0 || loaded.Pathway[0] != pathway.MethodDirect {
		t.Fatalf("pathway = %v, want a resolved chain starting with direct", loaded.Pathway)
	}
	if loaded.Status != queue.ItemAccepted {
		t.Fatalf("item status = %s, want accepted", loaded.Status)
	}
}
