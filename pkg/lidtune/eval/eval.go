package eval

import (
	"fmt"
	"math"

	"github.com/cognicore/lidtune/pkg/lidtune/classify"
	"github.com/cognicore/lidtune/pkg/lidtune/ingest"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
)

// UnknownLabelPolicy decides what happens to development lines whose label
// was never seen in training.
type UnknownLabelPolicy string

const (
	// RejectUnknown fails the evaluation with ErrDataQuality.
	RejectUnknown UnknownLabelPolicy = "reject"
	// SkipUnknown still predicts the line but leaves it out of the metrics.
	SkipUnknown UnknownLabelPolicy = "skip"
)

// LanguageStats holds the per-language counts and scores.
type LanguageStats struct {
	Language  string
	Correct   int // lines of this language predicted correctly
	Wrong     int // lines of other languages predicted as this one
	ShouldBe  int // lines whose true label is this language
	Precision float64
	Recall    float64
	F1        float64
}

// Report is the outcome of evaluating one hyperparameter configuration.
type Report struct {
	MinN      int
	MaxN      int
	Smoothing float64

	MacroF1    float64 // unweighted mean of per-language F1
	WeightedF1 float64 // F1 weighted by ShouldBe share
	MicroF1    float64 // from aggregate correct/wrong

	Correct int
	Wrong   int
	// Unknown counts wrong predictions that fell back to classify.Unknown.
	Unknown int
	// Skipped counts lines excluded under SkipUnknown.
	Skipped int

	Languages   []LanguageStats // model language order
	Predictions []string        // one per input line
}

// Options configures an Evaluator.
type Options struct {
	Classifier    *classify.Classifier
	Normalizer    *ingest.Normalizer // defaults to the model's normalizer
	UnknownLabels UnknownLabelPolicy // defaults to RejectUnknown
}

// Evaluator runs the classifier over labeled text and scores the result.
type Evaluator struct {
	classifier *classify.Classifier
	normalizer *ingest.Normalizer
	policy     UnknownLabelPolicy
}

// New creates an Evaluator.
func New(opts Options) *Evaluator {
	n := opts.Normalizer
	if n == nil && opts.Classifier != nil {
		n = opts.Classifier.Model().Normalizer()
	}
	policy := opts.UnknownLabels
	if policy == "" {
		policy = RejectUnknown
	}
	return &Evaluator{classifier: opts.Classifier, normalizer: n, policy: policy}
}

// Predict classifies every text, in order.
func (e *Evaluator) Predict(texts []string, minN, maxN int, smoothing float64) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		lang, err := e.classifier.Classify(e.normalizer.Normalize(text), minN, maxN, smoothing)
		if err != nil {
			return nil, fmt.Errorf("eval: line %d: %w", i+1, err)
		}
		out[i] = lang
	}
	return out, nil
}

// Evaluate classifies every labeled line and computes per-language
// precision, recall and F1 plus the aggregate scores.
//
// Precision is defined as exactly 1 for a language that was never wrongly
// predicted. A trained language without development lines makes the macro
// score meaningless and is reported as ErrDataQuality.
func (e *Evaluator) Evaluate(lines []ingest.Line, minN, maxN int, smoothing float64) (Report, error) {
	if e.classifier == nil {
		return Report{}, fmt.Errorf("eval: nil classifier: %w", internalerr.ErrInvalidConfig)
	}
	model := e.classifier.Model()
	langs := model.Languages()
	if len(langs) == 0 {
		return Report{}, fmt.Errorf("eval: no trained languages: %w", internalerr.ErrDataQuality)
	}

	rep := Report{
		MinN:        minN,
		MaxN:        maxN,
		Smoothing:   smoothing,
		Predictions: make([]string, len(lines)),
	}

	correct := make(map[string]int, len(langs))
	wrong := make(map[string]int, len(langs)+1)
	shouldBe := make(map[string]int, len(langs))

	for i, line := range lines {
		predicted, err := e.classifier.Classify(e.normalizer.Normalize(line.Text), minN, maxN, smoothing)
		if err != nil {
			return Report{}, fmt.Errorf("eval: line %d: %w", i+1, err)
		}
		rep.Predictions[i] = predicted

		if !model.HasLanguage(line.Label) {
			if e.policy == SkipUnknown {
				rep.Skipped++
				continue
			}
			return Report{}, fmt.Errorf("eval: line %d: label %q not in training data: %w",
				i+1, line.Label, internalerr.ErrDataQuality)
		}

		shouldBe[line.Label]++
		if predicted == line.Label {
			rep.Correct++
			correct[predicted]++
		} else {
			rep.Wrong++
			wrong[predicted]++
			if predicted == classify.Unknown {
				rep.Unknown++
			}
		}
	}

	counted := rep.Correct + rep.Wrong
	var sumF1, weighted float64
	var missing []string
	rep.Languages = make([]LanguageStats, len(langs))
	for i, lang := range langs {
		st := score(lang, correct[lang], wrong[lang], shouldBe[lang])
		rep.Languages[i] = st
		if st.ShouldBe == 0 {
			missing = append(missing, lang)
		}
		sumF1 += st.F1
		if counted > 0 {
			weighted += st.F1 * float64(st.ShouldBe) / float64(counted)
		}
	}
	if len(missing) > 0 {
		return rep, fmt.Errorf("eval: no development lines for trained languages %v: %w",
			missing, internalerr.ErrDataQuality)
	}

	rep.MacroF1 = sumF1 / float64(len(langs))
	rep.WeightedF1 = weighted
	if counted > 0 {
		// aggregate precision and recall are both correct/total
		rep.MicroF1 = float64(rep.Correct) / float64(counted)
	}

	if math.IsNaN(rep.MacroF1) || math.IsInf(rep.MacroF1, 0) {
		return rep, fmt.Errorf("eval: macro F1 %v: %w", rep.MacroF1, internalerr.ErrDataQuality)
	}
	return rep, nil
}

func score(lang string, correct, wrong, shouldBe int) LanguageStats {
	st := LanguageStats{Language: lang, Correct: correct, Wrong: wrong, ShouldBe: shouldBe}

	st.Precision = 1
	if wrong > 0 {
		st.Precision = float64(correct) / float64(correct+wrong)
	}
	if shouldBe > 0 {
		st.Recall = float64(correct) / float64(shouldBe)
	}
	if st.Precision+st.Recall > 0 {
		st.F1 = 2 * (st.Precision * st.Recall / (st.Precision + st.Recall))
	}
	return st
}
