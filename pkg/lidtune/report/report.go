package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/fatih/color"

	"github.com/cognicore/lidtune/pkg/lidtune/autotune/search"
	"github.com/cognicore/lidtune/pkg/lidtune/eval"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	bestColor   = color.New(color.FgGreen, color.Bold)
	scoreColor  = color.New(color.FgYellow)
)

// CheckFresh fails with ErrOutputExists if any of the named paths exists.
// Empty paths are ignored.
func CheckFresh(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		_, err := os.Stat(p)
		if err == nil {
			return fmt.Errorf("report: %s: %w", p, internalerr.ErrOutputExists)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("report: stat %s: %w", p, err)
		}
	}
	return nil
}

// CreateExclusive creates path for writing, refusing to replace an existing file.
func CreateExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("report: %s: %w", path, internalerr.ErrOutputExists)
	}
	return f, err
}

// WriteLabels writes one label per line, in input order.
func WriteLabels(w io.Writer, labels []string) error {
	bw := bufio.NewWriter(w)
	for _, l := range labels {
		if _, err := bw.WriteString(l + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteStatistics writes the per-language lines of rep followed by its
// macro F1 summary.
func WriteStatistics(w io.Writer, rep eval.Report) error {
	bw := bufio.NewWriter(w)
	for _, st := range rep.Languages {
		fmt.Fprintf(bw, "minNgram: %d\tmaxNgram: %d\tIndividual - Language: %s\tRecall: %s\tPrecision: %s\tF1-score: %s\n",
			rep.MinN, rep.MaxN, st.Language, num(st.Recall), num(st.Precision), num(st.F1))
	}
	fmt.Fprintf(bw, "Smoothing: %s\tminNgram: %d\tmaxNgram: %d\tTotal - MacroF1: %s\tMicroF1: %s\tWeighted F1: %s\n",
		num(rep.Smoothing), rep.MinN, rep.MaxN, num(rep.MacroF1), num(rep.MicroF1), num(rep.WeightedF1))
	return bw.Flush()
}

// WriteLabelsFile writes labels to a new file at path.
func WriteLabelsFile(path string, labels []string) error {
	return writeFile(path, func(w io.Writer) error { return WriteLabels(w, labels) })
}

// WriteStatisticsFile writes rep's statistics to a new file at path.
func WriteStatisticsFile(path string, rep eval.Report) error {
	return writeFile(path, func(w io.Writer) error { return WriteStatistics(w, rep) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := CreateExclusive(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("report: write %s: %w", path, err)
	}
	return f.Close()
}

// PrintRanked prints the ranked configurations and their total, highlighting the best.
func PrintRanked(w io.Writer, ranked []search.Ranked) {
	headerColor.Fprintf(w, "%-4s %-8s %-8s %-10s %s\n", "#", "minNgram", "maxNgram", "smoothing", "macroF1")
	var total float64
	for i, r := range ranked {
		line := fmt.Sprintf("%-4d %-8d %-8d %-10s ", i+1, r.MinN, r.MaxN, num(r.Smoothing))
		if i == 0 {
			bestColor.Fprint(w, line)
			bestColor.Fprintln(w, fmt.Sprintf("%.6f", r.MacroF1))
		} else {
			fmt.Fprint(w, line)
			scoreColor.Fprintln(w, fmt.Sprintf("%.6f", r.MacroF1))
		}
		total += r.MacroF1
	}
	headerColor.Fprintf(w, "total %.6f\n", total)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
