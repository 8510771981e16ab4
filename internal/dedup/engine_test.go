package dedup_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/dedup"
	"github.com/Khamel83/atlas-sub014/internal/testsupport"
)

func openEngine(t *testing.T) *dedup.Engine {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	engine, err := dedup.Open(cfg)
	if err != nil {
		t.Fatalf("open dedup engine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// longText builds n distinct words so similarity ratios are predictable.
func longText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%03d", i)
	}
	return strings.Join(words, " ")
}

func TestCheckAndRegisterUniqueContent(t *testing.T) {
	engine := openEngine(t)
	ctx := context.Background()

	outcome, err := engine.CheckAndRegister(ctx, "item-1", longText(100))
	if err != nil {
		t.Fatalf("check unique: %v", err)
	}
	if outcome.Duplicate {
		t.Fatalf("first content flagged duplicate: %+v", outcome)
	}

	size, err := engine.IndexSize(ctx)
	if err != nil {
		t.Fatalf("index size: %v", err)
	}
	if size != 1 {
		t.Fatalf("index size = %d, want 1", size)
	}
}

func TestCheckAndRegisterExactDuplicate(t *testing.T) {
	engine := openEngine(t)
	ctx := context.Background()
	content := longText(100)

	if _, err := engine.CheckAndRegister(ctx, "item-1", content); err != nil {
		t.Fatalf("register canonical: %v", err)
	}

	// Formatting differences normalize away, so this is still an exact hit.
	outcome, err := engine.CheckAndRegister(ctx, "item-2", "  "+strings.ToUpper(content)+"\n")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if !outcome.Duplicate {
		t.Fatal("reformatted copy not flagged as duplicate")
	}
	if outcome.Basis != dedup.BasisExactHash {
		t.Errorf("basis = %s, want %s", outcome.Basis, dedup.BasisExactHash)
	}
	if outcome.CanonicalID != "item-1" {
		t.Errorf("canonical = %s, want item-1", outcome.CanonicalID)
	}
	if outcome.Score != 1.0 {
		t.Errorf("score = %.2f, want 1.0", outcome.Score)
	}

	size, err := engine.IndexSize(ctx)
	if err != nil {
		t.Fatalf("index size: %v", err)
	}
	if size != 1 {
		t.Fatalf("index size = %d after duplicate, want 1", size)
	}
}

func TestCheckAndRegisterNearDuplicate(t *testing.T) {
	engine := openEngine(t)
	ctx := context.Background()

	words := strings.Fields(longText(100))
	original := strings.Join(words, " ")

	edited := make([]string, len(words))
	copy(edited, words)
	edited[10] = "changed"
	edited[50] = "swapped"
	edited[90] = "reworded"
	variant := strings.Join(edited, " ")

	if _, err := engine.CheckAndRegister(ctx, "item-1", original); err != nil {
		t.Fatalf("register canonical: %v", err)
	}

	outcome, err := engine.CheckAndRegister(ctx, "item-2", variant)
	if err != nil {
		t.Fatalf("check variant: %v", err)
	}
	if !outcome.Duplicate {
		t.Fatal("lightly edited copy not flagged as near-duplicate")
	}
	if outcome.Basis != dedup.BasisNearDuplicate {
		t.Errorf("basis = %s, want %s", outcome.Basis, dedup.BasisNearDuplicate)
	}
	if outcome.CanonicalID != "item-1" {
		t.Errorf("canonical = %s, want item-1", outcome.CanonicalID)
	}
	// 97 of 100 words survive in order: ratio 2*97/200.
	if outcome.Score < 0.87 || outcome.Score > 1.0 {
		t.Errorf("score = %.3f, want within [0.87, 1.0]", outcome.Score)
	}
}

func TestCheckAndRegisterDistinctContentBothRegister(t *testing.T) {
	engine := openEngine(t)
	ctx := context.Background()

	first := longText(100)
	second := strings.Join(strings.Fields(longText(100)), "x ") // no shared words

	if _, err := engine.CheckAndRegister(ctx, "item-1", first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	outcome, err := engine.CheckAndRegister(ctx, "item-2", second)
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if outcome.Duplicate {
		t.Fatalf("unrelated content flagged duplicate: %+v", outcome)
	}

	size, err := engine.IndexSize(ctx)
	if err != nil {
		t.Fatalf("index size: %v", err)
	}
	if size != 2 {
		t.Fatalf("index size = %d, want 2", size)
	}
}

func TestGroupForTracksMembers(t *testing.T) {
	engine := openEngine(t)
	ctx := context.Background()
	content := longText(100)

	if _, err := engine.CheckAndRegister(ctx, "item-1", content); err != nil {
		t.Fatalf("register canonical: %v", err)
	}
	if _, err := engine.CheckAndRegister(ctx, "item-2", content); err != nil {
		t.Fatalf("register duplicate: %v", err)
	}
	if _, err := engine.CheckAndRegister(ctx, "item-3", content); err != nil {
		t.Fatalf("register duplicate: %v", err)
	}

	group, err := engine.GroupFor(ctx, "item-1")
	if err != nil {
		t.Fatalf("load group: %v", err)
	}
	if group == nil {
		t.Fatal("no group for canonical item")
	}
	if group.CanonicalID != "item-1" {
		t.Errorf("canonical = %s, want item-1", group.CanonicalID)
	}
	if len(group.MemberIDs) != 2 {
		t.Errorf("members = %v, want item-2 and item-3", group.MemberIDs)
	}

	none, err := engine.GroupFor(ctx, "item-404")
	if err != nil {
		t.Fatalf("load missing group: %v", err)
	}
	if none != nil {
		t.Fatalf("group for unknown item = %+v, want nil", none)
	}
}
