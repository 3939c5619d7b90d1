package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/lidtune/pkg/lidtune/classify"
	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
)

// Range is an inclusive integer interval
type Range struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Seed describes the initial grid of the search
type Seed struct {
	MinNgram  Range     `yaml:"min_ngram"`
	MaxNgram  Range     `yaml:"max_ngram"`
	Smoothing []float64 `yaml:"smoothing"`
}

// Final holds the hyperparameters used when identifying without tuning
type Final struct {
	MinNgram  int     `yaml:"min_ngram"`
	MaxNgram  int     `yaml:"max_ngram"`
	Smoothing float64 `yaml:"smoothing"`
}

// Outputs names the result artifacts
type Outputs struct {
	Labels     string `yaml:"labels"`
	TestLabels string `yaml:"test_labels"`
	Statistics string `yaml:"statistics"`
}

// Config represents the tuner configuration
type Config struct {
	Seed           Seed `yaml:"seed"`
	AlphabeticOnly bool `yaml:"alphabetic_only"`
	NFC            bool `yaml:"nfc"`

	TopK               int     `yaml:"top_k"`
	SmoothingThreshold float64 `yaml:"smoothing_threshold"`
	SmoothingStep      float64 `yaml:"smoothing_step"`
	SmoothingCeiling   float64 `yaml:"smoothing_ceiling"`
	MaxNgramLimit      int     `yaml:"max_ngram_limit"` // 0 = unbounded
	MaxRounds          int     `yaml:"max_rounds"`      // 0 = until convergence
	Workers            int     `yaml:"workers"`         // 0 = GOMAXPROCS

	UnknownLabels string `yaml:"unknown_labels"` // reject | skip

	Final     Final               `yaml:"final"`
	Overrides []classify.Override `yaml:"overrides"`
	Outputs   Outputs             `yaml:"outputs"`
	Journal   string              `yaml:"journal"`
}

// Default returns the configuration of the reference experiments
func Default() Config {
	return Config{
		Seed: Seed{
			MinNgram:  Range{From: 2, To: 5},
			MaxNgram:  Range{From: 2, To: 5},
			Smoothing: []float64{1.0, 1.5, 2.0, 2.5},
		},
		TopK:               10,
		SmoothingThreshold: 0.1,
		SmoothingStep:      0.5,
		SmoothingCeiling:   10,
		UnknownLabels:      "reject",
		Final: Final{
			MinNgram:  1,
			MaxNgram:  4,
			Smoothing: 1.4375,
		},
		Outputs: Outputs{
			Labels:     "dev.labels",
			TestLabels: "test.labels",
			Statistics: "dev.statistics",
		},
	}
}

// Load reads a YAML configuration on top of Default
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the search cannot use
func (c Config) Validate() error {
	switch {
	case c.Seed.MinNgram.From < 1 || c.Seed.MinNgram.To < c.Seed.MinNgram.From:
		return invalid("seed.min_ngram", c.Seed.MinNgram)
	case c.Seed.MaxNgram.From < 1 || c.Seed.MaxNgram.To < c.Seed.MaxNgram.From:
		return invalid("seed.max_ngram", c.Seed.MaxNgram)
	case len(c.Seed.Smoothing) == 0:
		return invalid("seed.smoothing", c.Seed.Smoothing)
	case c.TopK < 1:
		return invalid("top_k", c.TopK)
	case c.SmoothingThreshold <= 0:
		return invalid("smoothing_threshold", c.SmoothingThreshold)
	case c.SmoothingStep <= 0:
		return invalid("smoothing_step", c.SmoothingStep)
	case c.SmoothingCeiling <= c.SmoothingStep:
		return invalid("smoothing_ceiling", c.SmoothingCeiling)
	case c.MaxNgramLimit < 0:
		return invalid("max_ngram_limit", c.MaxNgramLimit)
	case c.MaxNgramLimit > 0 && c.MaxNgramLimit < c.Seed.MaxNgram.To:
		return invalid("max_ngram_limit", c.MaxNgramLimit)
	case c.MaxRounds < 0:
		return invalid("max_rounds", c.MaxRounds)
	case c.Workers < 0:
		return invalid("workers", c.Workers)
	case c.UnknownLabels != "reject" && c.UnknownLabels != "skip":
		return invalid("unknown_labels", c.UnknownLabels)
	case c.Final.MinNgram < 1 || c.Final.MaxNgram < c.Final.MinNgram:
		return invalid("final", c.Final)
	case c.Final.Smoothing <= 0:
		return invalid("final.smoothing", c.Final.Smoothing)
	}

	for _, s := range c.Seed.Smoothing {
		if s <= 0 || s >= c.SmoothingCeiling {
			return invalid("seed.smoothing", s)
		}
	}
	for i, o := range c.Overrides {
		if o.Substring == "" || o.Language == "" {
			return invalid(fmt.Sprintf("overrides[%d]", i), o)
		}
	}
	return nil
}

func invalid(field string, value any) error {
	return fmt.Errorf("%s = %v: %w", field, value, internalerr.ErrInvalidConfig)
}

// LoadOverrides reads a substring override list.
// Format: language<TAB>substring, one per line; '#' starts a comment.
func LoadOverrides(path string) ([]classify.Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var overrides []classify.Override
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		lang, substring, ok := strings.Cut(line, "\t")
		if !ok || substring == "" {
			return nil, fmt.Errorf("%s:%d: expected language<TAB>substring: %w", path, i+1, internalerr.ErrInvalidInput)
		}
		overrides = append(overrides, classify.Override{
			Language:  strings.TrimSpace(lang),
			Substring: substring,
		})
	}

	return overrides, nil
}
