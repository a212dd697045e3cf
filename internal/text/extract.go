package text

import (
	"regexp"
	"strings"
)

// Extraction strips markup from a fetched HTML/text document. Chrome
// containers (script, style, nav, header, footer) are removed wholesale;
// block-level boundaries become paragraph breaks so the downstream chunker
// still sees the document's paragraph structure.

var (
	chromeRe = regexp.MustCompile(`(?is)<(script|style|nav|header|footer)\b[^>]*>.*?</\s*(?:script|style|nav|header|footer)\s*>`)
	blockRe  = regexp.MustCompile(`(?i)</?(?:p|div|section|article|br|li|ul|ol|h[1-6]|tr|table|blockquote|pre)\b[^>]*>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)

	multiBlankRe = regexp.MustCompile(`\n{3,}`)
	lineSpaceRe  = regexp.MustCompile(`[ \t\r\f]+`)
)

// ExtractMainText reduces raw HTML (or plain text) to readable prose.
func ExtractMainText(raw string) string {
	s := chromeRe.ReplaceAllString(raw, " ")
	s = blockRe.ReplaceAllString(s, "\n\n")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'").Replace(s)

	// Collapse horizontal whitespace per line, then squeeze blank runs.
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(lineSpaceRe.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = multiBlankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CountWords counts whitespace-separated tokens.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// QualityForWordCount maps an extracted word count to an extraction quality
// label: >800 high, >300 medium, else low.
func QualityForWordCount(words int) string {
	switch {
	case words > 800:
		return "high"
	case words > 300:
		return "medium"
	default:
		return "low"
	}
}
