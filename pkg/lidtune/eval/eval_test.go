package eval

import (
	"errors"
	"math"
	"testing"

	"github.com/cognicore/lidtune/pkg/lidtune/classify"
	"github.com/cognicore/lidtune/pkg/lidtune/ingest"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
	"github.com/cognicore/lidtune/pkg/lidtune/ngram"
)

func newEvaluator(t *testing.T, policy UnknownLabelPolicy) *Evaluator {
	t.Helper()
	m, err := ngram.Build([]ingest.Line{
		{Label: "en", Text: "the quick brown fox"},
		{Label: "fr", Text: "le renard brun rapide"},
		{Label: "de", Text: "der schnelle braune fuchs"},
	}, 1, 3, ingest.NewNormalizer(false, false))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// markers pin the predictions so the metrics are known exactly
	c := classify.New(m,
		classify.Override{Substring: "@en", Language: "en"},
		classify.Override{Substring: "@fr", Language: "fr"},
		classify.Override{Substring: "@de", Language: "de"},
	)
	return New(Options{Classifier: c, UnknownLabels: policy})
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluateMetrics(t *testing.T) {
	e := newEvaluator(t, "")
	dev := []ingest.Line{
		{Label: "en", Text: "x @en"},
		{Label: "en", Text: "x @fr"},
		{Label: "fr", Text: "x @fr"},
		{Label: "de", Text: "x @fr"},
	}

	rep, err := e.Evaluate(dev, 1, 3, 1.5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	en, fr, de := rep.Languages[0], rep.Languages[1], rep.Languages[2]
	if !approx(en.Precision, 1) || !approx(en.Recall, 0.5) || !approx(en.F1, 2.0/3) {
		t.Errorf("unexpected en stats %+v", en)
	}
	if !approx(fr.Precision, 1.0/3) || !approx(fr.Recall, 1) || !approx(fr.F1, 0.5) {
		t.Errorf("unexpected fr stats %+v", fr)
	}
	if de.Correct != 0 || de.Wrong != 0 || de.F1 != 0 {
		t.Errorf("unexpected de stats %+v", de)
	}

	if !approx(rep.MacroF1, (2.0/3+0.5)/3) {
		t.Errorf("macro F1 = %v", rep.MacroF1)
	}
	if !approx(rep.MicroF1, 0.5) {
		t.Errorf("micro F1 = %v", rep.MicroF1)
	}
	if !approx(rep.WeightedF1, (2.0/3*2+0.5)/4) {
		t.Errorf("weighted F1 = %v", rep.WeightedF1)
	}
	if rep.Correct != 2 || rep.Wrong != 2 {
		t.Errorf("expected 2 correct / 2 wrong, got %d / %d", rep.Correct, rep.Wrong)
	}
	want := []string{"en", "fr", "fr", "fr"}
	for i, p := range rep.Predictions {
		if p != want[i] {
			t.Errorf("prediction %d = %s, want %s", i, p, want[i])
		}
	}
}

func TestPrecisionIsOneWithoutWrongPredictions(t *testing.T) {
	e := newEvaluator(t, "")
	dev := []ingest.Line{
		{Label: "en", Text: "@en"},
		{Label: "fr", Text: "@en"},
		{Label: "de", Text: "@en"},
	}
	rep, err := e.Evaluate(dev, 1, 3, 1.0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	de := rep.Languages[2]
	if de.Correct != 0 || de.Wrong != 0 {
		t.Fatalf("expected no predictions for de, got %+v", de)
	}
	if de.Precision != 1.0 {
		t.Errorf("precision should be exactly 1, got %v", de.Precision)
	}
	if math.IsNaN(rep.MacroF1) {
		t.Error("macro F1 must be finite")
	}
}

func TestMissingDevelopmentLanguage(t *testing.T) {
	e := newEvaluator(t, "")
	dev := []ingest.Line{
		{Label: "en", Text: "@en"},
		{Label: "fr", Text: "@fr"},
	}
	_, err := e.Evaluate(dev, 1, 3, 1.0)
	if !errors.Is(err, internalerr.ErrDataQuality) {
		t.Fatalf("expected ErrDataQuality when de has no lines, got %v", err)
	}
}

func TestUnknownLabelRejected(t *testing.T) {
	e := newEvaluator(t, RejectUnknown)
	dev := []ingest.Line{
		{Label: "en", Text: "@en"},
		{Label: "fr", Text: "@fr"},
		{Label: "de", Text: "@de"},
		{Label: "sv", Text: "@en"},
	}
	if _, err := e.Evaluate(dev, 1, 3, 1.0); !errors.Is(err, internalerr.ErrDataQuality) {
		t.Fatalf("expected ErrDataQuality, got %v", err)
	}
}

func TestUnknownLabelSkipped(t *testing.T) {
	e := newEvaluator(t, SkipUnknown)
	dev := []ingest.Line{
		{Label: "en", Text: "@en"},
		{Label: "sv", Text: "@en"},
		{Label: "fr", Text: "@fr"},
		{Label: "de", Text: "@de"},
	}
	rep, err := e.Evaluate(dev, 1, 3, 1.0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rep.Skipped != 1 {
		t.Errorf("expected 1 skipped line, got %d", rep.Skipped)
	}
	if len(rep.Predictions) != 4 || rep.Predictions[1] != "en" {
		t.Errorf("skipped lines are still predicted: %v", rep.Predictions)
	}
	if rep.MacroF1 != 1 {
		t.Errorf("expected perfect macro F1, got %v", rep.MacroF1)
	}
}

func TestUnknownPredictionsCounted(t *testing.T) {
	m, err := ngram.Build([]ingest.Line{
		{Label: "en", Text: "hello"},
		{Label: "fr", Text: "salut"},
	}, 3, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := New(Options{Classifier: classify.New(m)})
	dev := []ingest.Line{
		{Label: "en", Text: ""},
		{Label: "fr", Text: "salut"},
	}
	rep, err := e.Evaluate(dev, 3, 3, 2.0)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if rep.Predictions[0] != classify.Unknown {
		t.Errorf("empty text should be unknown, got %s", rep.Predictions[0])
	}
	if rep.Unknown != 1 {
		t.Errorf("expected 1 unknown prediction, got %d", rep.Unknown)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	m, err := ngram.Build([]ingest.Line{
		{Label: "en", Text: "the cat sat on the mat"},
		{Label: "en", Text: "a dog barked at night"},
		{Label: "fi", Text: "kissa istui matolla"},
		{Label: "fi", Text: "koira haukkui yöllä"},
	}, 1, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := New(Options{Classifier: classify.New(m)})
	dev := []ingest.Line{
		{Label: "en", Text: "the dog sat"},
		{Label: "fi", Text: "kissa haukkui"},
		{Label: "en", Text: "at night"},
	}

	first, err := e.Evaluate(dev, 1, 4, 1.25)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Evaluate(dev, 1, 4, 1.25)
	if err != nil {
		t.Fatal(err)
	}
	if math.Float64bits(first.MacroF1) != math.Float64bits(second.MacroF1) {
		t.Errorf("macro F1 differs between runs: %v vs %v", first.MacroF1, second.MacroF1)
	}
}

func TestPredict(t *testing.T) {
	e := newEvaluator(t, "")
	got, err := e.Predict([]string{"@de", "@en"}, 1, 3, 1.0)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(got) != 2 || got[0] != "de" || got[1] != "en" {
		t.Errorf("unexpected predictions %v", got)
	}
}

func TestPredictPropagatesModelErrors(t *testing.T) {
	e := newEvaluator(t, "")
	if _, err := e.Predict([]string{"hello"}, 1, 5, 1.0); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for unbuilt length, got %v", err)
	}
}
