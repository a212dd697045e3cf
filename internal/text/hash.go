package text

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeForHash lowercases and collapses all whitespace runs to a single
// space so that formatting differences don't defeat exact deduplication.
func NormalizeForHash(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(s), " "))
}

// HashContent returns the hex-encoded sha256 of the normalized text.
// Two texts that differ only in case or whitespace hash identically.
func HashContent(s string) string {
	sum := sha256.Sum256([]byte(NormalizeForHash(s)))
	return hex.EncodeToString(sum[:])
}
