package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePrefix produces the canonical comparison form of content: NFKC
// normalized, lower-cased, whitespace collapsed, truncated to prefixLength
// runes. Both the exact-hash index and the content store hash are built over
// this form so the two always agree.
func NormalizePrefix(content string, prefixLength int) string {
	normalized := norm.NFKC.String(content)
	normalized = strings.ToLower(normalized)
	normalized = strings.Join(strings.Fields(normalized), " ")

	runes := []rune(normalized)
	if prefixLength > 0 && len(runes) > prefixLength {
		runes = runes[:prefixLength]
	}
	return string(runes)
}

// HashPrefix returns the hex sha256 of the normalized content prefix. This is
// the item's content_hash.
func HashPrefix(content string, prefixLength int) string {
	sum := sha256.Sum256([]byte(NormalizePrefix(content, prefixLength)))
	return hex.EncodeToString(sum[:])
}
