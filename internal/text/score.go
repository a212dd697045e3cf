package text

import "math"

type Verdict string

const (
	VerdictKeep   Verdict = "KEEP"
	VerdictRepair Verdict = "REPAIR"
	VerdictDrop   Verdict = "DROP"
)

type Quality struct {
	Score       int     `json:"score"`
	Verdict     Verdict `json:"verdict"`
	LengthWords int     `json:"length_words"`
	NoiseRatio  float64 `json:"noise_ratio"`
}

// ScoreChunk grades a chunk candidate on word count and boilerplate noise.
// Starting from 100: under 80 words −60, over 650 words −20, noise ratio
// above 2% −25 and above 6% a further −50. KEEP at ≥75, REPAIR at ≥55,
// DROP below that. Deterministic: same content, same filter, same result.
func ScoreChunk(content string, filter BoilerplateFilter) Quality {
	words := CountWords(content)
	ratio := filter.NoiseRatio(content)

	score := 100
	if words < 80 {
		score -= 60
	}
	if words > 650 {
		score -= 20
	}
	if ratio > 0.02 {
		score -= 25
	}
	if ratio > 0.06 {
		score -= 50
	}

	verdict := VerdictDrop
	switch {
	case score >= 75:
		verdict = VerdictKeep
	case score >= 55:
		verdict = VerdictRepair
	}

	return Quality{
		Score:       score,
		Verdict:     verdict,
		LengthWords: words,
		NoiseRatio:  math.Round(ratio*10000) / 10000,
	}
}
