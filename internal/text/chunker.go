package text

import (
	"regexp"
	"strings"
)

// Chunking targets. A chunk is flushed once it reaches MinChunkWords and is
// never allowed to grow past MaxChunkWords by appending another paragraph
// (a single oversized paragraph still becomes its own chunk).
const (
	MinChunkWords = 180
	MaxChunkWords = 320
)

type Candidate struct {
	Title     string                 `json:"title,omitempty"`
	Subdomain string                 `json:"subdomain,omitempty"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Quality   *Quality               `json:"quality,omitempty"`
}

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

// ChunkText splits cleaned text into paragraphs and greedily accumulates
// them into candidates of roughly MinChunkWords–MaxChunkWords words.
// Paragraph order is preserved and no paragraph is dropped or duplicated;
// only the final chunk may fall under the lower bound.
func ChunkText(cleaned string) []Candidate {
	var paragraphs []string
	for _, p := range paragraphRe.Split(cleaned, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []Candidate
	var buf []string
	words := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		chunks = append(chunks, Candidate{
			Content:  strings.Join(buf, "\n\n"),
			Metadata: map[string]interface{}{},
		})
		buf = buf[:0]
		words = 0
	}

	for _, p := range paragraphs {
		w := CountWords(p)
		if words+w > MaxChunkWords {
			flush()
		}
		buf = append(buf, p)
		words += w
		if words >= MinChunkWords {
			flush()
		}
	}
	flush()
	return chunks
}
