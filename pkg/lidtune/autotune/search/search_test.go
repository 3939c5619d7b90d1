package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"sync"
	"testing"

	"github.com/cognicore/lidtune/pkg/lidtune/eval"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
	"github.com/cognicore/lidtune/pkg/lidtune/store/memstore"
)

var quiet = log.New(io.Discard, "", 0)

// peakScorer scores points by closeness to a fixed optimum and counts calls.
type peakScorer struct {
	peak Point

	mu    sync.Mutex
	calls map[Point]int
	built int // highest length the scorer may read
	err   error
}

func newPeakScorer(peak Point) *peakScorer {
	return &peakScorer{peak: peak, calls: make(map[Point]int)}
}

func (s *peakScorer) Evaluate(_ context.Context, p Point) (eval.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[p]++
	if s.err != nil {
		return eval.Report{}, s.err
	}
	if s.built > 0 && p.MaxN > s.built {
		return eval.Report{}, fmt.Errorf("length %d not built", p.MaxN)
	}
	dist := math.Abs(float64(p.MinN-s.peak.MinN)) +
		math.Abs(float64(p.MaxN-s.peak.MaxN)) +
		math.Abs(p.Smoothing-s.peak.Smoothing)
	return eval.Report{MacroF1: 1 / (1 + dist)}, nil
}

// EnsureRange lets the scorer double as a model provider.
func (s *peakScorer) EnsureRange(_ context.Context, _, maxN int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxN > s.built {
		s.built = maxN
	}
	return nil
}

func TestSeedGrid(t *testing.T) {
	grid := SeedGrid(2, 5, 2, 5, []float64{1.0, 1.5, 2.0, 2.5})
	if len(grid) != 40 {
		t.Fatalf("expected 40 seed points, got %d", len(grid))
	}
	for _, p := range grid {
		if p.MinN > p.MaxN {
			t.Errorf("seed point %s has min > max", p)
		}
	}
}

func TestRankTieBreak(t *testing.T) {
	table := NewResultTable()
	table.Set(Point{3, 4, 1.0}, 0.5)
	table.Set(Point{2, 5, 2.0}, 0.5)
	table.Set(Point{2, 5, 1.5}, 0.5)
	table.Set(Point{4, 4, 1.0}, 0.7)

	ranked := Rank(table)
	want := []Point{{4, 4, 1.0}, {2, 5, 1.5}, {2, 5, 2.0}, {3, 4, 1.0}}
	for i, p := range want {
		if ranked[i].Point != p {
			t.Errorf("rank %d = %s, want %s", i, ranked[i].Point, p)
		}
	}
	if got := Total(ranked, 2); math.Abs(got-1.2) > 1e-12 {
		t.Errorf("Total(2) = %v, want 1.2", got)
	}
}

func TestResultTableNeighbors(t *testing.T) {
	table := NewResultTable()
	for _, s := range []float64{2.0, 1.0, 1.5} {
		table.Set(Point{3, 5, s}, 0.4)
	}
	table.Set(Point{2, 5, 1.25}, 0.4)

	lower, hasLower, upper, hasUpper := table.neighbors(3, 5, 1.5)
	if !hasLower || lower != 1.0 || !hasUpper || upper != 2.0 {
		t.Errorf("neighbors(1.5) = %v/%v %v/%v", lower, hasLower, upper, hasUpper)
	}
	if _, hasLower, _, _ := table.neighbors(3, 5, 1.0); hasLower {
		t.Error("1.0 should have no lower neighbor")
	}
	if got := table.Smoothings(3, 5); len(got) != 3 || got[0] != 1.0 || got[2] != 2.0 {
		t.Errorf("Smoothings = %v", got)
	}
}

func TestTodoTableDeduplicates(t *testing.T) {
	todo := NewTodoTable()
	todo.Add(Point{2, 5, 1.5})
	todo.Add(Point{2, 5, 1.5})
	todo.Add(Point{1, 5, 1.5})
	if todo.Len() != 2 {
		t.Fatalf("expected 2 queued points, got %d", todo.Len())
	}
	if todo.Points()[0] != (Point{1, 5, 1.5}) {
		t.Errorf("points not ordered: %v", todo.Points())
	}
}

func expandFrom(results map[Point]float64, from Point) map[Point]bool {
	c := &Controller{results: NewResultTable()}
	for p, s := range results {
		c.results.Set(p, s)
	}
	todo := c.expand([]Ranked{{Point: from, MacroF1: results[from]}})
	got := make(map[Point]bool)
	for _, p := range todo.Points() {
		got[p] = true
	}
	return got
}

func TestExpandProposesNeighbours(t *testing.T) {
	from := Point{3, 5, 1.5}
	got := expandFrom(map[Point]float64{
		from:         0.6,
		{3, 5, 1.0}:  0.5,
		{2, 5, 1.25}: 0.5,
	}, from)

	want := []Point{
		{2, 5, 1.5},
		{4, 5, 1.5},
		{3, 4, 1.5},
		{3, 6, 1.5},
		{3, 5, 1.25}, // midpoint with the evaluated 1.0
		{3, 5, 2.0},  // nothing above, one step up
	}
	for _, p := range want {
		if !got[p] {
			t.Errorf("expected %s to be proposed", p)
		}
	}
	if len(got) != len(want) {
		t.Errorf("expected %d proposals, got %v", len(want), got)
	}
}

func TestExpandSkipsEvaluated(t *testing.T) {
	from := Point{3, 5, 1.5}
	got := expandFrom(map[Point]float64{
		from:        0.6,
		{2, 5, 1.5}: 0.55,
	}, from)
	if got[Point{2, 5, 1.5}] {
		t.Error("(2,5,1.5) is already scored and must not be proposed")
	}
	if !got[Point{4, 5, 1.5}] {
		t.Error("expected min length to grow to 4")
	}
}

func TestExpandSmoothingThreshold(t *testing.T) {
	from := Point{1, 4, 1.5}
	got := expandFrom(map[Point]float64{
		from:           0.6,
		{1, 4, 1.4375}: 0.6,
		{1, 4, 1.5625}: 0.5,
	}, from)
	for p := range got {
		if p.MinN == 1 && p.MaxN == 4 {
			t.Errorf("gaps below threshold should not be bisected, got %s", p)
		}
	}
	if !got[Point{1, 5, 1.5}] || !got[Point{2, 4, 1.5}] || !got[Point{1, 3, 1.5}] || len(got) != 3 {
		t.Errorf("expected only length neighbours, got %v", got)
	}
}

func TestExpandAtLowerBounds(t *testing.T) {
	from := Point{1, 1, 0.5}
	got := expandFrom(map[Point]float64{from: 0.3}, from)
	want := map[Point]bool{{1, 2, 0.5}: true, {1, 1, 1.0}: true}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for p := range want {
		if !got[p] {
			t.Errorf("missing %s", p)
		}
	}
}

func TestExpandRespectsMaxNgramLimit(t *testing.T) {
	c := &Controller{results: NewResultTable(), Settings: Settings{MaxNgramLimit: 5}}
	from := Point{5, 5, 1.0}
	c.results.Set(from, 0.5)
	todo := c.expand([]Ranked{{Point: from, MacroF1: 0.5}})
	if todo.Has(Point{5, 6, 1.0}) {
		t.Error("max length must not exceed the limit")
	}
}

func TestRunConvergesAndMemoizes(t *testing.T) {
	scorer := newPeakScorer(Point{1, 4, 1.4375})
	c := &Controller{
		Scorer:   scorer,
		Models:   scorer,
		Settings: Settings{Seed: SeedGrid(2, 5, 2, 5, []float64{1.0, 1.5, 2.0, 2.5}), MaxRounds: 100, Workers: 4},
		Logger:   quiet,
	}

	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Converged {
		t.Fatalf("expected convergence, stopped after %d rounds", out.Rounds)
	}

	for p, n := range scorer.calls {
		if n != 1 {
			t.Errorf("%s evaluated %d times", p, n)
		}
	}
	if out.Evaluations != len(scorer.calls) || out.Results.Len() != len(scorer.calls) {
		t.Errorf("evaluations %d, table %d, calls %d", out.Evaluations, out.Results.Len(), len(scorer.calls))
	}

	for i := 1; i < len(out.Totals); i++ {
		if out.Totals[i] < out.Totals[i-1] {
			t.Errorf("top-10 total decreased in round %d: %v", i+1, out.Totals)
		}
	}

	if out.Best.MinN != 1 || out.Best.MaxN != 4 {
		t.Errorf("expected the search to reach lengths 1..4, best is %s", out.Best.Point)
	}
	if math.Abs(out.Best.Smoothing-1.4375) > 0.1 {
		t.Errorf("best smoothing %v too far from the optimum", out.Best.Smoothing)
	}
	if len(out.Top) != 10 {
		t.Errorf("expected 10 ranked points, got %d", len(out.Top))
	}
}

func TestRunMaxRounds(t *testing.T) {
	scorer := newPeakScorer(Point{1, 4, 1.4375})
	c := &Controller{
		Scorer:   scorer,
		Settings: Settings{Seed: SeedGrid(2, 5, 2, 5, []float64{1.0, 1.5, 2.0, 2.5}), MaxRounds: 1},
		Logger:   quiet,
	}
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out.Rounds != 1 || out.Evaluations != 40 || out.Converged {
		t.Errorf("unexpected outcome: rounds=%d evaluations=%d converged=%v", out.Rounds, out.Evaluations, out.Converged)
	}
}

func TestRunExtendsModelBeforeEvaluating(t *testing.T) {
	scorer := newPeakScorer(Point{2, 7, 2.0})
	scorer.built = 5 // lengths above 5 fail unless EnsureRange ran first
	c := &Controller{
		Scorer:   scorer,
		Models:   scorer,
		Settings: Settings{Seed: SeedGrid(2, 5, 2, 5, []float64{1.5, 2.0}), MaxRounds: 20},
		Logger:   quiet,
	}
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Best.MaxN < 6 {
		t.Errorf("expected the search to grow max length, best %s", out.Best.Point)
	}
}

func TestRunPropagatesScorerError(t *testing.T) {
	scorer := newPeakScorer(Point{2, 4, 1.0})
	scorer.err = errors.New("boom")
	c := &Controller{
		Scorer:   scorer,
		Settings: Settings{Seed: SeedGrid(2, 3, 2, 3, []float64{1.0})},
		Logger:   quiet,
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected scorer error")
	}
}

func TestRunRejectsInvalidSeed(t *testing.T) {
	c := &Controller{
		Scorer:   newPeakScorer(Point{2, 4, 1.0}),
		Settings: Settings{Seed: []Point{{3, 2, 1.0}}},
		Logger:   quiet,
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected invalid seed error")
	}
}

func TestRunJournalsResults(t *testing.T) {
	ctx := context.Background()
	journal := memstore.New()
	if err := journal.CreateRun(ctx, store.Run{ID: "run-1"}); err != nil {
		t.Fatal(err)
	}

	c := &Controller{
		Scorer:   newPeakScorer(Point{2, 3, 1.0}),
		Settings: Settings{Seed: SeedGrid(2, 3, 2, 3, []float64{1.0, 2.0}), MaxRounds: 2},
		Journal:  journal,
		RunID:    "run-1",
		Logger:   quiet,
	}
	out, err := c.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	results, err := journal.Results(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != out.Evaluations {
		t.Errorf("journal has %d results, expected %d", len(results), out.Evaluations)
	}
	for _, r := range results {
		if r.Round < 1 || r.Round > out.Rounds {
			t.Errorf("result %+v has round outside 1..%d", r, out.Rounds)
		}
	}
}

func TestRunJournalRequiresRunID(t *testing.T) {
	c := &Controller{
		Scorer:   newPeakScorer(Point{2, 3, 1.0}),
		Settings: Settings{Seed: SeedGrid(2, 3, 2, 3, []float64{1.0})},
		Journal:  memstore.New(),
		Logger:   quiet,
	}
	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected error for journal without run id")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Controller{
		Scorer:   newPeakScorer(Point{2, 3, 1.0}),
		Settings: Settings{Seed: SeedGrid(2, 3, 2, 3, []float64{1.0})},
		Logger:   quiet,
	}
	if _, err := c.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
