package text

import (
	"regexp"
	"strings"
)

// BoilerplateFilter is the pluggable strategy behind the Clean stage and the
// quality scorer. Strip removes junk from cleaned text; NoiseRatio measures
// how much boilerplate vocabulary a chunk still carries.
type BoilerplateFilter interface {
	Strip(s string) string
	NoiseRatio(s string) float64
}

// RegexFilter is the default pattern-based filter, tuned for scraped web
// articles (navigation, legal, social and newsletter blocks, bare URLs).
type RegexFilter struct {
	junk      []*regexp.Regexp
	bareURLRe *regexp.Regexp
	noiseRe   *regexp.Regexp

	// MinLineLen drops residual short lines (menu items, captions).
	MinLineLen int
	// MinCleanedLen rejects a document that shrank to nothing after cleaning.
	MinCleanedLen int
}

var multiSpaceRe = regexp.MustCompile(` {2,}`)

func NewRegexFilter() *RegexFilter {
	return &RegexFilter{
		junk: []*regexp.Regexp{
			regexp.MustCompile(`(?is)(?:menu|nav|footer|sidebar|header|cookie|newsletter|subscribe|advertisement|share this|related posts|te puede interesar|artículos relacionados|categorías|etiquetas|tags|comments|deja un comentario|leave a reply).{0,500}`),
			regexp.MustCompile(`(?is)(?:follow us|síguenos|redes sociales|facebook|twitter|instagram|linkedin|youtube|pinterest|whatsapp).{0,200}`),
			regexp.MustCompile(`(?is)(?:privacy policy|política de privacidad|terms of service|aviso legal|cookies?).{0,300}`),
			regexp.MustCompile(`(?is)(?:you will receive|suscríbete|subscribe|sign up|regístrate).{0,200}`),
		},
		bareURLRe:     regexp.MustCompile(`https?://\S+`),
		noiseRe:       regexp.MustCompile(`(?i)cookie|subscribe|privacy|facebook|twitter|instagram|related|newsletter`),
		MinLineLen:    40,
		MinCleanedLen: 200,
	}
}

// Strip removes boilerplate blocks and bare URLs, drops lines shorter than
// MinLineLen, and collapses blank runs and repeated spaces. Returns "" when
// too little survives to be worth keeping.
func (f *RegexFilter) Strip(s string) string {
	for _, re := range f.junk {
		s = re.ReplaceAllString(s, "")
	}
	s = f.bareURLRe.ReplaceAllString(s, "")

	var kept []string
	blank := true
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(multiSpaceRe.ReplaceAllString(line, " "))
		if line == "" {
			if !blank {
				kept = append(kept, "")
				blank = true
			}
			continue
		}
		if len(line) < f.MinLineLen {
			continue
		}
		kept = append(kept, line)
		blank = false
	}
	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	if len(cleaned) < f.MinCleanedLen {
		return ""
	}
	return cleaned
}

// NoiseRatio is boilerplate-indicator hits divided by word count.
func (f *RegexFilter) NoiseRatio(s string) float64 {
	words := CountWords(s)
	if words == 0 {
		words = 1
	}
	hits := len(f.noiseRe.FindAllString(s, -1))
	return float64(hits) / float64(words)
}
