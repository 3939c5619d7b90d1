package ngram

import (
	"fmt"
	"sort"

	"github.com/cognicore/lidtune/pkg/lidtune/ingest"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
)

// Model holds character n-gram frequencies per language.
//
// The frequency table and type totals only grow: building a new length range
// never discards counts for lengths built earlier. A Model is safe for
// concurrent reads, but Extend must not run while readers are active.
type Model struct {
	grams      map[string]map[string]float64 // n-gram -> language -> count
	totals     map[string]map[int]float64    // language -> length -> n-gram instances
	languages  []string                      // first-appearance order
	known      map[string]struct{}
	built      map[int]struct{}
	normalizer *ingest.Normalizer
}

// New creates an empty model that normalizes training text with n.
func New(n *ingest.Normalizer) *Model {
	return &Model{
		grams:      make(map[string]map[string]float64),
		totals:     make(map[string]map[int]float64),
		known:      make(map[string]struct{}),
		built:      make(map[int]struct{}),
		normalizer: n,
	}
}

// Build creates a model covering lengths minN..maxN.
func Build(lines []ingest.Line, minN, maxN int, n *ingest.Normalizer) (*Model, error) {
	m := New(n)
	if _, err := m.Extend(lines, minN, maxN); err != nil {
		return nil, err
	}
	return m, nil
}

// Extend counts every length in minN..maxN that has not been built yet and
// returns the lengths it added, longest first. Lines with an empty label are
// ignored.
func (m *Model) Extend(lines []ingest.Line, minN, maxN int) ([]int, error) {
	if minN < 1 || maxN < minN {
		return nil, fmt.Errorf("ngram: range %d..%d: %w", minN, maxN, internalerr.ErrInvalidInput)
	}

	var missing []int
	for t := maxN; t >= minN; t-- {
		if _, ok := m.built[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	for _, line := range lines {
		if line.Label == "" {
			continue
		}
		m.register(line.Label, missing)

		runes := []rune(m.normalizer.Normalize(line.Text))
		for _, t := range missing {
			windows := len(runes) - t + 1
			if windows <= 0 {
				continue
			}
			for x := 0; x < windows; x++ {
				m.add(string(runes[x:x+t]), line.Label)
			}
			m.totals[line.Label][t] += float64(windows)
		}
	}

	for _, t := range missing {
		m.built[t] = struct{}{}
		// languages registered by earlier builds may have no line long enough
		for _, lang := range m.languages {
			if _, ok := m.totals[lang][t]; !ok {
				m.totals[lang][t] = 0
			}
		}
	}
	return missing, nil
}

func (m *Model) register(lang string, lengths []int) {
	if _, ok := m.known[lang]; !ok {
		m.known[lang] = struct{}{}
		m.languages = append(m.languages, lang)
	}
	byLen := m.totals[lang]
	if byLen == nil {
		byLen = make(map[int]float64)
		m.totals[lang] = byLen
	}
	for _, t := range lengths {
		if _, ok := byLen[t]; !ok {
			byLen[t] = 0
		}
	}
}

func (m *Model) add(gram, lang string) {
	byLang := m.grams[gram]
	if byLang == nil {
		byLang = make(map[string]float64)
		m.grams[gram] = byLang
	}
	byLang[lang]++
}

// Count returns how often gram was seen for lang. The flag is false when
// the gram was never attributed to lang.
func (m *Model) Count(gram, lang string) (float64, bool) {
	byLang, ok := m.grams[gram]
	if !ok {
		return 0, false
	}
	c, ok := byLang[lang]
	return c, ok
}

// TypeTotal returns the number of n-gram instances of length t seen for lang.
func (m *Model) TypeTotal(lang string, t int) float64 {
	return m.totals[lang][t]
}

// HasLength reports whether length t has been built.
func (m *Model) HasLength(t int) bool {
	_, ok := m.built[t]
	return ok
}

// Lengths returns the built n-gram lengths in ascending order.
func (m *Model) Lengths() []int {
	out := make([]int, 0, len(m.built))
	for t := range m.built {
		out = append(out, t)
	}
	sort.Ints(out)
	return out
}

// Languages returns the trained languages in first-appearance order.
func (m *Model) Languages() []string {
	out := make([]string, len(m.languages))
	copy(out, m.languages)
	return out
}

// HasLanguage reports whether lang was seen in training.
func (m *Model) HasLanguage(lang string) bool {
	_, ok := m.known[lang]
	return ok
}

// Normalizer returns the normalizer used for training text.
func (m *Model) Normalizer() *ingest.Normalizer {
	return m.normalizer
}

// UniqueGrams returns the number of distinct n-grams across all lengths.
func (m *Model) UniqueGrams() int {
	return len(m.grams)
}

// Check verifies that every type total equals the sum of the counts of the
// n-grams of that length attributed to the language.
func (m *Model) Check() error {
	sums := make(map[string]map[int]float64, len(m.languages))
	for gram, byLang := range m.grams {
		t := len([]rune(gram))
		for lang, c := range byLang {
			if sums[lang] == nil {
				sums[lang] = make(map[int]float64)
			}
			sums[lang][t] += c
		}
	}

	for _, lang := range m.languages {
		for t, total := range m.totals[lang] {
			if got := sums[lang][t]; got != total {
				return fmt.Errorf("ngram: %s length %d: type total %v, counted %v: %w",
					lang, t, total, got, internalerr.ErrDataQuality)
			}
		}
	}
	return nil
}
