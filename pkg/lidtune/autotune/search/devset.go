package search

import (
	"context"
	"log"
	"sync"

	"github.com/cognicore/lidtune/pkg/lidtune/eval"
	"github.com/cognicore/lidtune/pkg/lidtune/ingest"
	"github.com/cognicore/lidtune/pkg/lidtune/ngram"
)

// DevSet scores configurations of one trained model against a labeled
// development corpus, growing the model on demand.
type DevSet struct {
	Model     *ngram.Model
	Train     []ingest.Line
	Evaluator *eval.Evaluator
	Dev       []ingest.Line
	Logger    *log.Logger

	mu sync.Mutex
}

// EnsureRange builds any missing length in minN..maxN.
func (d *DevSet) EnsureRange(_ context.Context, minN, maxN int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	added, err := d.Model.Extend(d.Train, minN, maxN)
	if err != nil {
		return err
	}
	if len(added) > 0 {
		logger := d.Logger
		if logger == nil {
			logger = log.Default()
		}
		logger.Printf("ngram: built lengths %v (%d unique grams)", added, d.Model.UniqueGrams())
	}
	return nil
}

// Evaluate scores p on the development corpus.
func (d *DevSet) Evaluate(_ context.Context, p Point) (eval.Report, error) {
	return d.Evaluator.Evaluate(d.Dev, p.MinN, p.MaxN, p.Smoothing)
}
