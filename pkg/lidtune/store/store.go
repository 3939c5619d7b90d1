package store

import (
	"context"
	"time"
)

// Store journals tuning runs: the configurations evaluated and how each
// language fared under them.
type Store interface {
	Close() error

	// Runs
	CreateRun(ctx context.Context, r Run) error
	GetRun(ctx context.Context, id string) (Run, bool, error)
	ListRuns(ctx context.Context) ([]Run, error)

	// Evaluated configurations
	RecordResult(ctx context.Context, r Result) error
	Results(ctx context.Context, runID string) ([]Result, error)

	// Per-language statistics of one configuration
	RecordLanguageStats(ctx context.Context, key Key, stats []LanguageStat) error
	LanguageStats(ctx context.Context, key Key) ([]LanguageStat, error)
}

// Run describes one tuning session
type Run struct {
	ID        string
	StartedAt time.Time
	TrainPath string
	DevPath   string
	Languages []string
}

// Key identifies one evaluated configuration within a run
type Key struct {
	RunID     string
	MinN      int
	MaxN      int
	Smoothing float64
}

// Result is the macro F1 of one configuration
type Result struct {
	Key
	MacroF1 float64
	Round   int
}

// LanguageStat is one language's precision, recall and F1
type LanguageStat struct {
	Language  string
	Correct   int
	Wrong     int
	ShouldBe  int
	Precision float64
	Recall    float64
	F1        float64
}

// Less orders keys by run, then min length, max length and smoothing.
func (k Key) Less(o Key) bool {
	if k.RunID != o.RunID {
		return k.RunID < o.RunID
	}
	if k.MinN != o.MinN {
		return k.MinN < o.MinN
	}
	if k.MaxN != o.MaxN {
		return k.MaxN < o.MaxN
	}
	return k.Smoothing < o.Smoothing
}
