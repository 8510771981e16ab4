package testsupport

import (
	"context"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/config"
	"github.com/Khamel83/atlas-sub014/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates a content item with its ingest task for tests.
func NewItem(t testing.TB, store *queue.Store, sourceURL, domain string) (*queue.Item, *queue.Task) {
	t.Helper()

	item, task, err := store.NewItem(context.Background(), sourceURL, domain, "article", nil, 0)
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	return item, task
}
