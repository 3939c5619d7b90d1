package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
)

// Store is an in-memory implementation of store.Store for tests and
// runs without a journal file.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]store.Run
	results map[store.Key]store.Result
	stats   map[store.Key][]store.LanguageStat
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:    make(map[string]store.Run),
		results: make(map[store.Key]store.Result),
		stats:   make(map[store.Key][]store.LanguageStat),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// CreateRun registers a run; creating the same ID twice is an error.
func (s *Store) CreateRun(ctx context.Context, r store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		return fmt.Errorf("memstore: empty run id: %w", internalerr.ErrInvalidInput)
	}
	if _, ok := s.runs[r.ID]; ok {
		return fmt.Errorf("memstore: run %s exists: %w", r.ID, internalerr.ErrInvalidInput)
	}
	r.Languages = append([]string(nil), r.Languages...)
	s.runs[r.ID] = r
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, false, nil
	}
	r.Languages = append([]string(nil), r.Languages...)
	return r, true, nil
}

// ListRuns returns all runs, oldest first.
func (s *Store) ListRuns(ctx context.Context) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// RecordResult stores or replaces the score of a configuration.
func (s *Store) RecordResult(ctx context.Context, r store.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[r.RunID]; !ok {
		return fmt.Errorf("memstore: run %s: %w", r.RunID, internalerr.ErrNotFound)
	}
	s.results[r.Key] = r
	return nil
}

// Results returns the run's results ordered by configuration.
func (s *Store) Results(ctx context.Context, runID string) ([]store.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Result
	for k, r := range s.results {
		if k.RunID == runID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

// RecordLanguageStats replaces the per-language stats of a configuration.
func (s *Store) RecordLanguageStats(ctx context.Context, key store.Key, stats []store.LanguageStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[key.RunID]; !ok {
		return fmt.Errorf("memstore: run %s: %w", key.RunID, internalerr.ErrNotFound)
	}
	s.stats[key] = append([]store.LanguageStat(nil), stats...)
	return nil
}

// LanguageStats returns the per-language stats of a configuration in the
// order they were recorded.
func (s *Store) LanguageStats(ctx context.Context, key store.Key) ([]store.LanguageStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]store.LanguageStat(nil), s.stats[key]...), nil
}
