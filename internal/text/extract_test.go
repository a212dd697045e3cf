package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMainText(t *testing.T) {
	t.Run("Strips Chrome Elements", func(t *testing.T) {
		html := `<html><head><script>var x = 1;</script><style>.a{}</style></head>
<body><nav><a href="/">Home</a><a href="/about">About</a></nav>
<p>Real article content here.</p>
<footer>Copyright 2026</footer></body></html>`

		out := ExtractMainText(html)
		assert.Contains(t, out, "Real article content here.")
		assert.NotContains(t, out, "var x")
		assert.NotContains(t, out, "Home")
		assert.NotContains(t, out, "Copyright")
	})

	t.Run("Preserves Paragraph Breaks", func(t *testing.T) {
		html := `<div><p>First paragraph.</p><p>Second paragraph.</p></div>`
		out := ExtractMainText(html)
		parts := strings.Split(out, "\n\n")
		assert.GreaterOrEqual(t, len(parts), 2)
		assert.Contains(t, parts[0], "First paragraph.")
	})

	t.Run("Decodes Entities", func(t *testing.T) {
		out := ExtractMainText(`<p>Fish &amp; Chips &quot;daily&quot;</p>`)
		assert.Contains(t, out, `Fish & Chips "daily"`)
	})

	t.Run("Collapses Whitespace", func(t *testing.T) {
		out := ExtractMainText("<p>spaced    out\t\ttext</p>")
		assert.Contains(t, out, "spaced out text")
	})

	t.Run("Plain Text Passthrough", func(t *testing.T) {
		out := ExtractMainText("just plain text, no markup at all")
		assert.Equal(t, "just plain text, no markup at all", out)
	})
}

func TestQualityForWordCount(t *testing.T) {
	assert.Equal(t, "high", QualityForWordCount(801))
	assert.Equal(t, "medium", QualityForWordCount(800))
	assert.Equal(t, "medium", QualityForWordCount(301))
	assert.Equal(t, "low", QualityForWordCount(300))
	assert.Equal(t, "low", QualityForWordCount(0))
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords("   "))
	assert.Equal(t, 3, CountWords("one  two\nthree"))
}
