package lidtune

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cognicore/lidtune/pkg/lidtune/autotune/search"
	"github.com/cognicore/lidtune/pkg/lidtune/classify"
	"github.com/cognicore/lidtune/pkg/lidtune/config"
	"github.com/cognicore/lidtune/pkg/lidtune/eval"
	"github.com/cognicore/lidtune/pkg/lidtune/ingest"
	"github.com/cognicore/lidtune/pkg/lidtune/ngram"
	"github.com/cognicore/lidtune/pkg/lidtune/report"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
)

// Tuner is the language identification facade: it trains on a labeled
// corpus, searches hyperparameters on a development corpus and writes the
// resulting labels and statistics.
type Tuner struct {
	cfg     config.Config
	journal store.Store
	logger  *log.Logger
	out     io.Writer
	now     func() time.Time
}

// Options configures a Tuner
type Options struct {
	Config  config.Config
	Journal store.Store // optional
	Logger  *log.Logger // defaults to log.Default()
	Out     io.Writer   // ranked table; nil disables it
}

// New creates a Tuner
func New(opts Options) *Tuner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Tuner{
		cfg:     opts.Config,
		journal: opts.Journal,
		logger:  logger,
		out:     opts.Out,
		now:     time.Now,
	}
}

// TuneRequest names the corpora of a tuning run
type TuneRequest struct {
	TrainPath string
	DevPath   string
	TestPath  string // optional, labeled with the best configuration
}

// TuneResult is the outcome of a tuning run
type TuneResult struct {
	RunID      string // empty without a journal
	Search     search.Outcome
	Final      eval.Report
	TestLabels []string
}

// Tune searches for the best configuration on the development corpus, then
// writes its development labels and statistics and optionally labels the
// test corpus.
func (t *Tuner) Tune(ctx context.Context, req TuneRequest) (TuneResult, error) {
	outputs := []string{t.cfg.Outputs.Labels, t.cfg.Outputs.Statistics}
	if req.TestPath != "" {
		outputs = append(outputs, t.cfg.Outputs.TestLabels)
	}
	if err := report.CheckFresh(outputs...); err != nil {
		return TuneResult{}, err
	}

	train, err := ingest.LoadLabeled(req.TrainPath)
	if err != nil {
		return TuneResult{}, err
	}
	dev, err := ingest.LoadLabeled(req.DevPath)
	if err != nil {
		return TuneResult{}, err
	}
	var test []string
	if req.TestPath != "" {
		if test, err = ingest.LoadUnlabeled(req.TestPath); err != nil {
			return TuneResult{}, err
		}
	}
	t.logger.Printf("lidtune: %d training lines, %d development lines", len(train), len(dev))

	devset := t.devSet(train, dev)
	seed := t.cfg.Seed
	if err := devset.EnsureRange(ctx, seed.MinNgram.From, max(seed.MaxNgram.To, seed.MinNgram.To)); err != nil {
		return TuneResult{}, err
	}
	if err := devset.Model.Check(); err != nil {
		return TuneResult{}, err
	}
	t.logger.Printf("lidtune: %d languages %v", len(devset.Model.Languages()), devset.Model.Languages())

	var res TuneResult
	if t.journal != nil {
		started := t.now()
		run := store.Run{
			ID:        store.NewRunID(started),
			StartedAt: started,
			TrainPath: req.TrainPath,
			DevPath:   req.DevPath,
			Languages: devset.Model.Languages(),
		}
		if err := t.journal.CreateRun(ctx, run); err != nil {
			return TuneResult{}, fmt.Errorf("lidtune: create run: %w", err)
		}
		res.RunID = run.ID
		t.logger.Printf("lidtune: journaling run %s", run.ID)
	}

	ctrl := &search.Controller{
		Scorer:   devset,
		Models:   devset,
		Settings: SearchSettings(t.cfg),
		Journal:  t.journal,
		RunID:    res.RunID,
		Logger:   t.logger,
	}
	if res.Search, err = ctrl.Run(ctx); err != nil {
		return res, err
	}
	if t.out != nil {
		report.PrintRanked(t.out, res.Search.Top)
	}

	best := res.Search.Best
	if res.Final, err = devset.Evaluate(ctx, best.Point); err != nil {
		return res, err
	}
	if err := report.WriteLabelsFile(t.cfg.Outputs.Labels, res.Final.Predictions); err != nil {
		return res, err
	}
	if err := report.WriteStatisticsFile(t.cfg.Outputs.Statistics, res.Final); err != nil {
		return res, err
	}

	if req.TestPath != "" {
		if res.TestLabels, err = devset.Evaluator.Predict(test, best.MinN, best.MaxN, best.Smoothing); err != nil {
			return res, err
		}
		if err := report.WriteLabelsFile(t.cfg.Outputs.TestLabels, res.TestLabels); err != nil {
			return res, err
		}
	}
	return res, nil
}

// IdentifyRequest names the corpora of a run with fixed hyperparameters
type IdentifyRequest struct {
	TrainPath string
	TestPath  string
	DevPath   string // optional, scored and written like a tuning result
}

// IdentifyResult holds the labels and, with a development corpus, its report
type IdentifyResult struct {
	TestLabels []string
	Dev        *eval.Report
}

// Identify labels the test corpus with the configured final hyperparameters.
func (t *Tuner) Identify(ctx context.Context, req IdentifyRequest) (IdentifyResult, error) {
	outputs := []string{t.cfg.Outputs.TestLabels}
	if req.DevPath != "" {
		outputs = append(outputs, t.cfg.Outputs.Labels, t.cfg.Outputs.Statistics)
	}
	if err := report.CheckFresh(outputs...); err != nil {
		return IdentifyResult{}, err
	}

	train, err := ingest.LoadLabeled(req.TrainPath)
	if err != nil {
		return IdentifyResult{}, err
	}
	test, err := ingest.LoadUnlabeled(req.TestPath)
	if err != nil {
		return IdentifyResult{}, err
	}
	var dev []ingest.Line
	if req.DevPath != "" {
		if dev, err = ingest.LoadLabeled(req.DevPath); err != nil {
			return IdentifyResult{}, err
		}
	}

	final := t.cfg.Final
	devset := t.devSet(train, dev)
	if err := devset.EnsureRange(ctx, final.MinNgram, final.MaxNgram); err != nil {
		return IdentifyResult{}, err
	}
	t.logger.Printf("lidtune: identifying %d lines with minNgram = %d, maxNgram = %d, smoothing = %g",
		len(test), final.MinNgram, final.MaxNgram, final.Smoothing)

	var res IdentifyResult
	if res.TestLabels, err = devset.Evaluator.Predict(test, final.MinNgram, final.MaxNgram, final.Smoothing); err != nil {
		return res, err
	}
	if err := report.WriteLabelsFile(t.cfg.Outputs.TestLabels, res.TestLabels); err != nil {
		return res, err
	}

	if req.DevPath != "" {
		rep, err := devset.Evaluate(ctx, search.Point{MinN: final.MinNgram, MaxN: final.MaxNgram, Smoothing: final.Smoothing})
		if err != nil {
			return res, err
		}
		res.Dev = &rep
		if err := report.WriteLabelsFile(t.cfg.Outputs.Labels, rep.Predictions); err != nil {
			return res, err
		}
		if err := report.WriteStatisticsFile(t.cfg.Outputs.Statistics, rep); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (t *Tuner) devSet(train, dev []ingest.Line) *search.DevSet {
	model := ngram.New(ingest.NewNormalizer(t.cfg.AlphabeticOnly, t.cfg.NFC))
	clf := classify.New(model, t.cfg.Overrides...)
	return &search.DevSet{
		Model: model,
		Train: train,
		Evaluator: eval.New(eval.Options{
			Classifier:    clf,
			UnknownLabels: eval.UnknownLabelPolicy(t.cfg.UnknownLabels),
		}),
		Dev:    dev,
		Logger: t.logger,
	}
}

// SearchSettings maps the configuration onto the search controller.
func SearchSettings(cfg config.Config) search.Settings {
	seed := cfg.Seed
	return search.Settings{
		Seed:          search.SeedGrid(seed.MinNgram.From, seed.MinNgram.To, seed.MaxNgram.From, seed.MaxNgram.To, seed.Smoothing),
		TopK:          cfg.TopK,
		Threshold:     cfg.SmoothingThreshold,
		Step:          cfg.SmoothingStep,
		Ceiling:       cfg.SmoothingCeiling,
		MaxNgramLimit: cfg.MaxNgramLimit,
		MaxRounds:     cfg.MaxRounds,
		Workers:       cfg.Workers,
	}
}
