package search

import (
	"fmt"
	"sort"
)

// Point is one hyperparameter configuration.
type Point struct {
	MinN      int
	MaxN      int
	Smoothing float64
}

func (p Point) String() string {
	return fmt.Sprintf("minNgram = %d, maxNgram = %d, smoothing = %g", p.MinN, p.MaxN, p.Smoothing)
}

// Less orders points by min length, then max length, then smoothing.
func (p Point) Less(o Point) bool {
	if p.MinN != o.MinN {
		return p.MinN < o.MinN
	}
	if p.MaxN != o.MaxN {
		return p.MaxN < o.MaxN
	}
	return p.Smoothing < o.Smoothing
}

// Valid reports whether the point can be evaluated.
func (p Point) Valid() bool {
	return p.MinN >= 1 && p.MaxN >= p.MinN && p.Smoothing > 0
}

type lengthRange struct{ min, max int }

// ResultTable memoizes the macro F1 of every evaluated point.
type ResultTable struct {
	scores     map[Point]float64
	smoothings map[lengthRange][]float64 // sorted
}

// NewResultTable creates an empty table.
func NewResultTable() *ResultTable {
	return &ResultTable{
		scores:     make(map[Point]float64),
		smoothings: make(map[lengthRange][]float64),
	}
}

// Has reports whether p has been scored.
func (t *ResultTable) Has(p Point) bool {
	_, ok := t.scores[p]
	return ok
}

// Get returns the score of p.
func (t *ResultTable) Get(p Point) (float64, bool) {
	s, ok := t.scores[p]
	return s, ok
}

// Set records the score of p. A point is only ever recorded once.
func (t *ResultTable) Set(p Point, score float64) {
	if _, ok := t.scores[p]; ok {
		t.scores[p] = score
		return
	}
	t.scores[p] = score

	key := lengthRange{p.MinN, p.MaxN}
	list := t.smoothings[key]
	i := sort.SearchFloat64s(list, p.Smoothing)
	list = append(list, 0)
	copy(list[i+1:], list[i:])
	list[i] = p.Smoothing
	t.smoothings[key] = list
}

// Len returns the number of scored points.
func (t *ResultTable) Len() int {
	return len(t.scores)
}

// Points returns every scored point in Point order.
func (t *ResultTable) Points() []Point {
	out := make([]Point, 0, len(t.scores))
	for p := range t.scores {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Smoothings returns the scored smoothing values of a length range, ascending.
func (t *ResultTable) Smoothings(minN, maxN int) []float64 {
	list := t.smoothings[lengthRange{minN, maxN}]
	return append([]float64(nil), list...)
}

// neighbors returns the nearest scored smoothing values strictly below and
// above s for the same length range.
func (t *ResultTable) neighbors(minN, maxN int, s float64) (lower float64, hasLower bool, upper float64, hasUpper bool) {
	list := t.smoothings[lengthRange{minN, maxN}]
	i := sort.SearchFloat64s(list, s)
	if i > 0 {
		lower, hasLower = list[i-1], true
	}
	for i < len(list) && list[i] <= s {
		i++
	}
	if i < len(list) {
		upper, hasUpper = list[i], true
	}
	return
}

// TodoTable is the set of points pending evaluation.
type TodoTable struct {
	points map[Point]struct{}
}

// NewTodoTable creates an empty todo table.
func NewTodoTable() *TodoTable {
	return &TodoTable{points: make(map[Point]struct{})}
}

// Add queues p; duplicates collapse.
func (t *TodoTable) Add(p Point) {
	t.points[p] = struct{}{}
}

// Has reports whether p is queued.
func (t *TodoTable) Has(p Point) bool {
	_, ok := t.points[p]
	return ok
}

// Len returns the number of queued points.
func (t *TodoTable) Len() int {
	return len(t.points)
}

// Points returns the queued points in Point order.
func (t *TodoTable) Points() []Point {
	out := make([]Point, 0, len(t.points))
	for p := range t.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Ranked is a scored point.
type Ranked struct {
	Point
	MacroF1 float64
}

// Rank orders every scored point by descending macro F1. Equal scores keep
// Point order, so the earlier configuration ranks higher.
func Rank(t *ResultTable) []Ranked {
	out := make([]Ranked, 0, t.Len())
	for p, s := range t.scores {
		out = append(out, Ranked{Point: p, MacroF1: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MacroF1 != out[j].MacroF1 {
			return out[i].MacroF1 > out[j].MacroF1
		}
		return out[i].Point.Less(out[j].Point)
	})
	return out
}

// Total sums the scores of the first k ranked points.
func Total(ranked []Ranked, k int) float64 {
	var total float64
	for i, r := range ranked {
		if i >= k {
			break
		}
		total += r.MacroF1
	}
	return total
}

// SeedGrid enumerates every point with min length in minFrom..minTo, max
// length in maxFrom..maxTo and min <= max, for each smoothing value.
func SeedGrid(minFrom, minTo, maxFrom, maxTo int, smoothings []float64) []Point {
	var out []Point
	for x := minFrom; x <= minTo; x++ {
		for y := maxFrom; y <= maxTo; y++ {
			if x > y {
				continue
			}
			for _, s := range smoothings {
				out = append(out, Point{MinN: x, MaxN: y, Smoothing: s})
			}
		}
	}
	return out
}
