package dedup_test

import (
	"context"
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/contentstore"
	"github.com/Khamel83/atlas-sub014/internal/dedup"
	"github.com/Khamel83/atlas-sub014/internal/testsupport"
)

// memorySource is an in-memory ContentSource for sweep tests.
type memorySource struct {
	entries []contentstore.Entry
}

func (m *memorySource) ListBatch(_ context.Context, offset, limit int) ([]contentstore.Entry, error) {
	if offset >= len(m.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.entries) {
		end = len(m.entries)
	}
	batch := make([]contentstore.Entry, end-offset)
	copy(batch, m.entries[offset:end])
	return batch, nil
}

func (m *memorySource) Delete(_ context.Context, itemID string) error {
	kept := m.entries[:0]
	for _, entry := range m.entries {
		if entry.ItemID != itemID {
			kept = append(kept, entry)
		}
	}
	m.entries = kept
	return nil
}

func (m *memorySource) ids() []string {
	ids := make([]string, len(m.entries))
	for i, entry := range m.entries {
		ids[i] = entry.ItemID
	}
	return ids
}

func TestSweepRemovesGarbage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	goodBody := strings.Repeat("a readable sentence about the subject at hand. ", 10)

	source := &memorySource{entries: []contentstore.Entry{
		{ItemID: "item-1", Title: "A Real Article", Domain: "example.com", Body: goodBody},
		{ItemID: "item-2", Title: "Short", Domain: "example.com", Body: "too small"},
		{ItemID: "item-3", Title: "Parked", Domain: "example.com", Body: goodBody + " this domain is for sale."},
		{ItemID: "item-4", Title: "example.com", Domain: "example.com", Body: goodBody},
		{ItemID: "item-5", Title: "Another Real One", Domain: "example.org", Body: goodBody},
	}}

	removed, err := dedup.NewSweeper(cfg, source, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}

	ids := source.ids()
	if len(ids) != 2 || ids[0] != "item-1" || ids[1] != "item-5" {
		t.Fatalf("surviving entries = %v, want [item-1 item-5]", ids)
	}
}

func TestSweepEmptyStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	source := &memorySource{}

	removed, err := dedup.NewSweeper(cfg, source, nil).Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}
