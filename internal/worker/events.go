package worker

import (
	"unicode/utf8"

	"ragline/internal/text"
)

// Stage payloads. Each is written once when the previous stage enqueues
// its successor; after Fetch the full document never travels again, only
// the progressively reduced text.

type ExtractPayload struct {
	RawText string `json:"raw_text"`
}

type CleanPayload struct {
	MainText string `json:"main_text"`
}

type ChunkPayload struct {
	Cleaned string `json:"cleaned"`
}

type ScorePayload struct {
	Chunks []text.Candidate `json:"chunks"`
}

type EmbedPayload struct {
	Chunks []text.Candidate `json:"chunks"`
}

// capString truncates s to at most max bytes, backing off to the nearest
// rune boundary so the result stays valid UTF-8.
func capString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
