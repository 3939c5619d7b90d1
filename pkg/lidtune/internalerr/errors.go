package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDataQuality reports a development set that cannot produce a finite score.
	ErrDataQuality = errors.New("data quality")
	// ErrDegenerateModel reports a language with no trained n-grams of a required length.
	ErrDegenerateModel = errors.New("degenerate model")
	// ErrOutputExists guards result artifacts from being overwritten.
	ErrOutputExists = errors.New("output already exists")
)
