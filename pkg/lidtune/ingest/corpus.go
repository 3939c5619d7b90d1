package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
)

// Line is one labeled example of a corpus.
type Line struct {
	Label string
	Text  string
}

// ParseLine splits a "label<TAB>text" corpus line.
// The text is everything after the last tab; the label is everything before
// the first tab with non-word characters removed. A line without a tab is
// returned whole as text with an empty label.
func ParseLine(line string) Line {
	line = strings.TrimRight(line, "\r\n")
	first := strings.IndexByte(line, '\t')
	if first < 0 {
		return Line{Text: line}
	}
	last := strings.LastIndexByte(line, '\t')
	return Line{
		Label: wordChars(line[:first]),
		Text:  line[last+1:],
	}
}

// wordChars keeps ASCII letters, digits and underscores.
func wordChars(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// LoadLabeled reads a tab-separated corpus into labeled lines.
func LoadLabeled(path string) ([]Line, error) {
	raw, err := readLines(path)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, len(raw))
	for i, l := range raw {
		lines[i] = ParseLine(l)
	}
	return lines, nil
}

// LoadUnlabeled reads a corpus whose lines are mystery texts. When a line
// carries a label column it is dropped.
func LoadUnlabeled(path string) ([]string, error) {
	raw, err := readLines(path)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(raw))
	for i, l := range raw {
		texts[i] = ParseLine(l).Text
	}
	return texts, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read corpus %s: %w", path, internalerr.ErrNotFound)
		}
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}

	content := strings.TrimSuffix(string(data), "\n")
	if content == "" {
		return nil, nil
	}
	lines := strings.Split(content, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	return lines, nil
}
