package scorer

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

const (
	// normalizationAlpha flattens raw valence sums into [-1, 1].
	normalizationAlpha = 15.0
	// negationDampener flips and slightly dampens a negated valence.
	negationDampener = -0.74
	// exclamationBoost is added per trailing "!" (capped).
	exclamationBoost = 0.292
	maxExclamations  = 4
	// negationLookback is how many tokens back a negation still applies.
	negationLookback = 3
	// concernFloor is the score ceiling when a distress phrase is present.
	concernFloor = -0.85
)

// concernPatterns match phrasing that signals acute distress. Any match
// floors the final score at concernFloor no matter what the lexicon sum
// says, so "so happy i could die" cannot come out positive.
var concernPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(want|wish|wanted)\s+to\s+(die|disappear|give\s+up|end\s+it)\b`),
	regexp.MustCompile(`(?i)\bkill\s+myself\b`),
	regexp.MustCompile(`(?i)\b(suicide|suicidal|self[\s-]?harm)\b`),
	regexp.MustCompile(`(?i)\bend\s+it\s+all\b`),
	regexp.MustCompile(`(?i)\bno\s+point\b`),
	regexp.MustCompile(`(?i)\bnothing\s+matters\b`),
	regexp.MustCompile(`(?i)\b(everyone|everybody)\s+hates\s+me\b`),
	regexp.MustCompile(`(?i)\bnobody\s+(cares|loves\s+me)\b`),
	regexp.MustCompile(`(?i)\balone\s+forever\b`),
	regexp.MustCompile(`(?i)\bcant\s+take\s+(it|this)\b`),
	regexp.MustCompile(`(?i)\bhate\s+(my\s+life|everything|everyone|myself)\b`),
	regexp.MustCompile(`(?i)\bwish\s+i\s+(was|were)\s+(dead|gone|never\s+born)\b`),
	regexp.MustCompile(`(?i)\bbetter\s+off\s+without\s+me\b`),
	// Sarcastic positive framing of violent phrasing.
	regexp.MustCompile(`(?i)\b(happy|excited|thrilled)\b.*\bcould\s+(die|kill)\b`),
}

// Analyzer scores text fragments. It is stateless and safe for concurrent
// use; the zero value is not usable, construct with New.
type Analyzer struct {
	concern []*regexp.Regexp
}

// New returns an Analyzer with compiled distress patterns.
func New() *Analyzer {
	return &Analyzer{concern: concernPatterns}
}

// Score maps a text fragment to a polarity score in [-1, 1]. An empty or
// whitespace-only fragment scores 0. Mixed languages, emoji and punctuation
// noise are tolerated: unknown tokens simply contribute nothing.
func (a *Analyzer) Score(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	normalized := normalizeApostrophes(strings.ToLower(text))
	tokens := tokenize(normalized)

	var sum float64
	for i, tok := range tokens {
		valence, ok := lexicon[tok]
		if !ok {
			continue
		}

		for back := 1; back <= negationLookback && i-back >= 0; back++ {
			prev := tokens[i-back]
			if boost, ok := boosters[prev]; ok {
				// Boosters decay with distance from the word they modify.
				valence *= 1 + (boost-1)/float64(back)
				continue
			}
			if negations[prev] {
				valence *= negationDampener
				break
			}
		}

		sum += valence
	}

	if sum != 0 {
		if n := countExclamations(text); n > 0 {
			boost := exclamationBoost * float64(min(n, maxExclamations))
			if sum > 0 {
				sum += boost
			} else {
				sum -= boost
			}
		}
	}

	score := sum / math.Sqrt(sum*sum+normalizationAlpha)
	score = clamp(score)

	for _, re := range a.concern {
		if re.MatchString(normalized) {
			return math.Min(score, concernFloor)
		}
	}

	return score
}

func normalizeApostrophes(s string) string {
	s = strings.ReplaceAll(s, "'", "")
	return strings.ReplaceAll(s, "’", "")
}

// tokenize splits on anything that is not a letter or digit, dropping
// emoji and punctuation noise along the way.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func countExclamations(s string) int {
	return strings.Count(s, "!")
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
