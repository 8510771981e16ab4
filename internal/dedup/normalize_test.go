package dedup_test

import (
	"strings"
	"testing"

	"github.com/Khamel83/atlas-sub014/internal/dedup"
)

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		prefixLength int
		want         string
	}{
		{
			name:         "lowercases and collapses whitespace",
			content:      "  The   Quick\n\nBrown\tFox  ",
			prefixLength: 100,
			want:         "the quick brown fox",
		},
		{
			name:         "compatibility normalization folds ligatures",
			content:      "oﬃce ﬁle",
			prefixLength: 100,
			want:         "office file",
		},
		{
			name:         "fullwidth digits fold to ascii",
			content:      "issue １２３",
			prefixLength: 100,
			want:         "issue 123",
		},
		{
			name:         "truncates by rune count",
			content:      "héllo world",
			prefixLength: 5,
			want:         "héllo",
		},
		{
			name:         "zero prefix length keeps everything",
			content:      "alpha beta gamma",
			prefixLength: 0,
			want:         "alpha beta gamma",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dedup.NormalizePrefix(tt.content, tt.prefixLength); got != tt.want {
				t.Errorf("NormalizePrefix(%q, %d) = %q, want %q", tt.content, tt.prefixLength, got, tt.want)
			}
		})
	}
}

func TestHashPrefixAgreesAcrossFormatting(t *testing.T) {
	a := dedup.HashPrefix("The Quick Brown Fox", 1000)
	b := dedup.HashPrefix("  the   quick\nbrown\tfox ", 1000)
	if a != b {
		t.Fatalf("hashes differ for content that normalizes identically: %s vs %s", a, b)
	}

	c := dedup.HashPrefix("the quick brown dog", 1000)
	if a == c {
		t.Fatal("different content produced the same hash")
	}
}

func TestHashPrefixIgnoresTailBeyondPrefix(t *testing.T) {
	prefix := strings.Repeat("word ", 300)
	a := dedup.HashPrefix(prefix+"same tail", 1000)
	b := dedup.HashPrefix(prefix+"completely different ending text", 1000)
	if a != b {
		t.Fatal("content differing only past the prefix boundary should hash identically")
	}
}
