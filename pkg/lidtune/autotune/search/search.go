package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/lidtune/pkg/lidtune/eval"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
)

// Scorer evaluates one configuration on the development set.
// Evaluate may be called concurrently once the required lengths are built.
type Scorer interface {
	Evaluate(ctx context.Context, p Point) (eval.Report, error)
}

// ModelProvider grows the trained model so every length in minN..maxN exists.
type ModelProvider interface {
	EnsureRange(ctx context.Context, minN, maxN int) error
}

// Settings bound the search.
type Settings struct {
	Seed []Point

	TopK      int     // ranked points that drive expansion
	Threshold float64 // smallest smoothing gap worth bisecting
	Step      float64 // smoothing step past the evaluated extremes
	Ceiling   float64 // smoothing proposals stay below this

	MaxNgramLimit int // 0 = unbounded
	MaxRounds     int // 0 = until convergence
	Workers       int // 0 = GOMAXPROCS
}

// DefaultSettings returns the settings of the reference experiments.
func DefaultSettings() Settings {
	return Settings{
		Seed:      SeedGrid(2, 5, 2, 5, []float64{1.0, 1.5, 2.0, 2.5}),
		TopK:      10,
		Threshold: 0.1,
		Step:      0.5,
		Ceiling:   10,
	}
}

// Controller runs the forking search: seed, evaluate, rank, expand,
// until the top-K total stops increasing.
type Controller struct {
	Scorer   Scorer
	Models   ModelProvider // optional
	Settings Settings

	Journal store.Store // optional
	RunID   string      // required with Journal

	Logger *log.Logger

	results     *ResultTable
	evaluations int
}

// Outcome summarizes a finished search.
type Outcome struct {
	Best        Ranked
	Top         []Ranked
	Totals      []float64 // top-K total after each round
	Rounds      int
	Evaluations int
	Converged   bool
	Results     *ResultTable
}

// Run executes the search.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if c.Scorer == nil {
		return Outcome{}, errors.New("search: nil scorer")
	}
	if c.Journal != nil && c.RunID == "" {
		return Outcome{}, fmt.Errorf("search: journal without run id: %w", internalerr.ErrInvalidConfig)
	}
	cfg := c.settings()
	if len(cfg.Seed) == 0 {
		return Outcome{}, fmt.Errorf("search: empty seed grid: %w", internalerr.ErrInvalidConfig)
	}

	c.results = NewResultTable()
	c.evaluations = 0

	todo := NewTodoTable()
	for _, p := range cfg.Seed {
		if !p.Valid() {
			return Outcome{}, fmt.Errorf("search: seed point (%s): %w", p, internalerr.ErrInvalidConfig)
		}
		todo.Add(p)
	}

	out := Outcome{Results: c.results}
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Rounds++
		if err := c.evaluateRound(ctx, out.Rounds, todo.Points()); err != nil {
			return out, err
		}

		ranked := Rank(c.results)
		total := Total(ranked, cfg.TopK)
		out.Top = top(ranked, cfg.TopK)
		out.Best = ranked[0]
		out.Evaluations = c.evaluations
		c.logRound(out.Rounds, out.Top, total)

		if len(out.Totals) > 0 && total <= out.Totals[len(out.Totals)-1] {
			out.Totals = append(out.Totals, total)
			out.Converged = true
			break
		}
		out.Totals = append(out.Totals, total)

		if cfg.MaxRounds > 0 && out.Rounds >= cfg.MaxRounds {
			c.logf("search: stopping after %d rounds", out.Rounds)
			break
		}

		todo = c.expand(out.Top)
		if todo.Len() == 0 {
			out.Converged = true
			break
		}
	}

	c.logf("search: best %s, macro F1 %.6f after %d evaluations", out.Best.Point, out.Best.MacroF1, out.Evaluations)
	return out, nil
}

// Results returns the memo table of the last run.
func (c *Controller) Results() *ResultTable {
	return c.results
}

// evaluateRound scores every pending point that is not memoized. Model
// growth happens before any worker starts; workers only read the model.
func (c *Controller) evaluateRound(ctx context.Context, round int, pending []Point) error {
	points := pending[:0:0]
	lo, hi := 0, 0
	for _, p := range pending {
		if c.results.Has(p) {
			continue
		}
		points = append(points, p)
		if lo == 0 || p.MinN < lo {
			lo = p.MinN
		}
		if p.MaxN > hi {
			hi = p.MaxN
		}
	}
	if len(points) == 0 {
		return nil
	}

	if c.Models != nil {
		if err := c.Models.EnsureRange(ctx, lo, hi); err != nil {
			return fmt.Errorf("search: extend model to %d..%d: %w", lo, hi, err)
		}
	}

	reports := make([]eval.Report, len(points))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers())
	for i, p := range points {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := c.Scorer.Evaluate(gctx, p)
			if err != nil {
				return fmt.Errorf("search: evaluate %s: %w", p, err)
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range points {
		c.logf("Evaluating: %s -> macro F1 %.6f", p, reports[i].MacroF1)
		c.results.Set(p, reports[i].MacroF1)
		c.evaluations++
		if err := c.journal(ctx, round, p, reports[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) journal(ctx context.Context, round int, p Point, rep eval.Report) error {
	if c.Journal == nil {
		return nil
	}
	key := store.Key{RunID: c.RunID, MinN: p.MinN, MaxN: p.MaxN, Smoothing: p.Smoothing}
	if err := c.Journal.RecordResult(ctx, store.Result{Key: key, MacroF1: rep.MacroF1, Round: round}); err != nil {
		return fmt.Errorf("search: journal %s: %w", p, err)
	}
	if err := c.Journal.RecordLanguageStats(ctx, key, LanguageStats(rep)); err != nil {
		return fmt.Errorf("search: journal stats %s: %w", p, err)
	}
	return nil
}

// LanguageStats converts a report's per-language rows for the journal.
func LanguageStats(rep eval.Report) []store.LanguageStat {
	out := make([]store.LanguageStat, len(rep.Languages))
	for i, st := range rep.Languages {
		out[i] = store.LanguageStat{
			Language:  st.Language,
			Correct:   st.Correct,
			Wrong:     st.Wrong,
			ShouldBe:  st.ShouldBe,
			Precision: st.Precision,
			Recall:    st.Recall,
			F1:        st.F1,
		}
	}
	return out
}

// expand proposes the unevaluated neighbours of every ranked point.
func (c *Controller) expand(ranked []Ranked) *TodoTable {
	cfg := c.settings()
	todo := NewTodoTable()
	propose := func(p Point) {
		if p.Valid() && !c.results.Has(p) {
			todo.Add(p)
		}
	}

	for _, r := range ranked {
		x, y, s := r.MinN, r.MaxN, r.Smoothing

		if x > 1 {
			propose(Point{x - 1, y, s})
		}
		if x < y {
			propose(Point{x + 1, y, s})
		}
		if y > x {
			propose(Point{x, y - 1, s})
		}
		if cfg.MaxNgramLimit == 0 || y+1 <= cfg.MaxNgramLimit {
			propose(Point{x, y + 1, s})
		}

		lower, hasLower, upper, hasUpper := c.results.neighbors(x, y, s)
		if !hasLower {
			if s-cfg.Step > 0 {
				propose(Point{x, y, s - cfg.Step})
			}
		} else if s-lower > cfg.Threshold {
			propose(Point{x, y, (s + lower) / 2})
		}
		if !hasUpper {
			if s+cfg.Step < cfg.Ceiling {
				propose(Point{x, y, s + cfg.Step})
			}
		} else if upper-s > cfg.Threshold {
			propose(Point{x, y, (s + upper) / 2})
		}
	}
	return todo
}

func (c *Controller) settings() Settings {
	cfg := c.Settings
	def := DefaultSettings()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = def.Ceiling
	}
	return cfg
}

func (c *Controller) workers() int {
	if c.Settings.Workers > 0 {
		return c.Settings.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (c *Controller) logRound(round int, ranked []Ranked, total float64) {
	c.logf("search: round %d, %d configurations evaluated", round, c.results.Len())
	for i, r := range ranked {
		c.logf("  %2d. %s  macro F1 %.6f", i+1, r.Point, r.MacroF1)
	}
	c.logf("search: top-%d total %.6f", len(ranked), total)
}

func (c *Controller) logf(format string, args ...any) {
	if c.Logger == nil {
		log.Printf(format, args...)
		return
	}
	c.Logger.Printf(format, args...)
}

func top(ranked []Ranked, k int) []Ranked {
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return append([]Ranked(nil), ranked...)
}
