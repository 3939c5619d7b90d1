package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
	"github.com/cognicore/lidtune/pkg/lidtune/ngram"
)

// Unknown is returned when no language can be determined.
const Unknown = "xxx"

// scoreCeiling is the starting winning score; a language must beat it.
const scoreCeiling = 1000.0

// Override forces a language for any text containing Substring.
type Override struct {
	Substring string `yaml:"substring"`
	Language  string `yaml:"language"`
}

// LanguageScore is the length-normalized negative log probability of a text
// under one language model. Lower is more probable.
type LanguageScore struct {
	Language string
	Score    float64
}

// Scores holds the per-language scores of one text.
type Scores struct {
	Languages []LanguageScore // model language order
	Grams     int             // n-gram instances examined
}

// Best returns the language with the minimum score, earliest language on
// ties, or Unknown when nothing was examined or nothing beats the ceiling.
func (s Scores) Best() string {
	if s.Grams == 0 {
		return Unknown
	}
	winner, best := Unknown, scoreCeiling
	for _, ls := range s.Languages {
		if ls.Score < best {
			best = ls.Score
			winner = ls.Language
		}
	}
	return winner
}

// Classifier scores mystery texts against a trained n-gram model.
type Classifier struct {
	model     *ngram.Model
	overrides []Override
}

// New creates a classifier over m. Overrides are checked in order before
// any scoring happens.
func New(m *ngram.Model, overrides ...Override) *Classifier {
	return &Classifier{model: m, overrides: overrides}
}

// Model returns the underlying n-gram model.
func (c *Classifier) Model() *ngram.Model {
	return c.model
}

// Score computes the per-language scores of a normalized text.
//
// For every length from maxN down to minN and every window of that length,
// a language seen with the gram adds -log10(count/total); otherwise it adds
// the smoothed penalty -log10(1/total)*smoothing. The sums are divided by
// the number of windows examined.
func (c *Classifier) Score(text string, minN, maxN int, smoothing float64) (Scores, error) {
	if err := c.validate(minN, maxN, smoothing); err != nil {
		return Scores{}, err
	}

	langs := c.model.Languages()
	sums := make([]float64, len(langs))
	runes := []rune(text)
	grams := 0

	for t := maxN; t >= minN; t-- {
		windows := len(runes) - t + 1
		if windows <= 0 {
			continue
		}

		totals := make([]float64, len(langs))
		for i, lang := range langs {
			totals[i] = c.model.TypeTotal(lang, t)
			if totals[i] == 0 {
				return Scores{}, fmt.Errorf("classify: language %s has no trained %d-grams: %w",
					lang, t, internalerr.ErrDegenerateModel)
			}
		}

		for x := 0; x < windows; x++ {
			gram := string(runes[x : x+t])
			grams++
			for i, lang := range langs {
				if count, ok := c.model.Count(gram, lang); ok {
					sums[i] += -math.Log10(count / totals[i])
				} else {
					sums[i] += -math.Log10(1/totals[i]) * smoothing
				}
			}
		}
	}

	out := Scores{Languages: make([]LanguageScore, len(langs)), Grams: grams}
	for i, lang := range langs {
		score := sums[i]
		if grams > 0 {
			score /= float64(grams)
		}
		out.Languages[i] = LanguageScore{Language: lang, Score: score}
	}
	return out, nil
}

// Classify returns the most probable language of a normalized text.
func (c *Classifier) Classify(text string, minN, maxN int, smoothing float64) (string, error) {
	for _, o := range c.overrides {
		if o.Substring != "" && strings.Contains(text, o.Substring) {
			return o.Language, nil
		}
	}

	scores, err := c.Score(text, minN, maxN, smoothing)
	if err != nil {
		return "", err
	}
	return scores.Best(), nil
}

func (c *Classifier) validate(minN, maxN int, smoothing float64) error {
	if minN < 1 || maxN < minN {
		return fmt.Errorf("classify: range %d..%d: %w", minN, maxN, internalerr.ErrInvalidInput)
	}
	if !(smoothing > 0) || math.IsInf(smoothing, 0) {
		return fmt.Errorf("classify: smoothing %v: %w", smoothing, internalerr.ErrInvalidInput)
	}
	for t := minN; t <= maxN; t++ {
		if !c.model.HasLength(t) {
			return fmt.Errorf("classify: %d-gram model not built: %w", t, internalerr.ErrInvalidConfig)
		}
	}
	return nil
}
