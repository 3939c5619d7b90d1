package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalizer prepares raw text for n-gram extraction.
type Normalizer struct {
	// AlphabeticOnly replaces every rune that is not a letter, a combining
	// mark or one of the apostrophe-like characters with a space.
	AlphabeticOnly bool
	// NFC composes the text to Unicode canonical form before filtering.
	NFC bool
}

// NewNormalizer creates a normalizer with the given filter settings
func NewNormalizer(alphabeticOnly, nfc bool) *Normalizer {
	return &Normalizer{AlphabeticOnly: alphabeticOnly, NFC: nfc}
}

// Normalize filters the text, collapses runs of spaces and pads the result
// with exactly one leading and one trailing space so that n-grams spanning
// a word boundary at the edges are representable.
//
// Only the ASCII space is collapsed; tabs and other separators survive when
// AlphabeticOnly is off.
func (n *Normalizer) Normalize(text string) string {
	if n != nil && n.NFC {
		text = norm.NFC.String(text)
	}

	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')

	prevSpace := true
	for _, r := range text {
		if n != nil && n.AlphabeticOnly && !keepRune(r) {
			r = ' '
		}
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
			b.WriteByte(' ')
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}

	out := b.String()
	if !prevSpace {
		out += " "
	}
	if out == " " {
		// empty input still yields a two-space boundary
		return "  "
	}
	return out
}

// apostrophes and danda survive the alphabetic filter alongside letters and marks
var keptPunctuation = map[rune]struct{}{
	'′': {}, '\'': {}, '’': {}, '´': {}, 'ʹ': {}, '।': {}, ' ': {},
}

func keepRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.Is(unicode.M, r) {
		return true
	}
	if _, ok := keptPunctuation[r]; ok {
		return true
	}
	// Thaana vowel signs and the Gujarati block
	if r >= 0x07A6 && r <= 0x07B0 {
		return true
	}
	return r >= 0x0A81 && r <= 0x0AF1
}
