package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/lidtune/pkg/lidtune/internalerr"
	"github.com/cognicore/lidtune/pkg/lidtune/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite journal with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	train_path TEXT,
	dev_path TEXT,
	languages TEXT
);

CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	min_ngram INTEGER NOT NULL,
	max_ngram INTEGER NOT NULL,
	smoothing REAL NOT NULL,
	macro_f1 REAL NOT NULL,
	round INTEGER NOT NULL,
	PRIMARY KEY(run_id, min_ngram, max_ngram, smoothing),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS language_stats (
	run_id TEXT NOT NULL,
	min_ngram INTEGER NOT NULL,
	max_ngram INTEGER NOT NULL,
	smoothing REAL NOT NULL,
	position INTEGER NOT NULL,
	language TEXT NOT NULL,
	correct INTEGER NOT NULL,
	wrong INTEGER NOT NULL,
	should_be INTEGER NOT NULL,
	precision REAL NOT NULL,
	recall REAL NOT NULL,
	f1 REAL NOT NULL,
	PRIMARY KEY(run_id, min_ngram, max_ngram, smoothing, language),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun inserts a new run
func (s *sqliteStore) CreateRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("sqlite: empty run id: %w", internalerr.ErrInvalidInput)
	}
	langs, err := json.Marshal(r.Languages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO runs (id, started_at, train_path, dev_path, languages)
VALUES (?, ?, ?, ?, ?);
`, r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.TrainPath, r.DevPath, string(langs))
	return err
}

// GetRun retrieves a run by ID
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, started_at, train_path, dev_path, languages FROM runs WHERE id = ?;
`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return store.Run{}, false, nil
	}
	if err != nil {
		return store.Run{}, false, err
	}
	return r, true, nil
}

// ListRuns returns all runs ordered by ID, which sorts by start time
func (s *sqliteStore) ListRuns(ctx context.Context) ([]store.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, started_at, train_path, dev_path, languages FROM runs ORDER BY id;
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var r store.Run
	var started, langs string
	var train, dev sql.NullString
	if err := sc.Scan(&r.ID, &started, &train, &dev, &langs); err != nil {
		return store.Run{}, err
	}
	r.TrainPath = train.String
	r.DevPath = dev.String
	if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
		r.StartedAt = ts
	}
	if langs != "" {
		if err := json.Unmarshal([]byte(langs), &r.Languages); err != nil {
			return store.Run{}, fmt.Errorf("decode languages of run %s: %w", r.ID, err)
		}
	}
	return r, nil
}

// RecordResult inserts or updates the score of a configuration
func (s *sqliteStore) RecordResult(ctx context.Context, r store.Result) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO results (run_id, min_ngram, max_ngram, smoothing, macro_f1, round)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(run_id, min_ngram, max_ngram, smoothing) DO UPDATE SET
	macro_f1=excluded.macro_f1,
	round=excluded.round;
`, r.RunID, r.MinN, r.MaxN, r.Smoothing, r.MacroF1, r.Round)
	return err
}

// Results returns the run's results ordered by configuration
func (s *sqliteStore) Results(ctx context.Context, runID string) ([]store.Result, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT min_ngram, max_ngram, smoothing, macro_f1, round
FROM results
WHERE run_id = ?
ORDER BY min_ngram, max_ngram, smoothing;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.Result
	for rows.Next() {
		r := store.Result{Key: store.Key{RunID: runID}}
		if err := rows.Scan(&r.MinN, &r.MaxN, &r.Smoothing, &r.MacroF1, &r.Round); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RecordLanguageStats replaces the per-language stats of a configuration
func (s *sqliteStore) RecordLanguageStats(ctx context.Context, key store.Key, stats []store.LanguageStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM language_stats
WHERE run_id = ? AND min_ngram = ? AND max_ngram = ? AND smoothing = ?;
`, key.RunID, key.MinN, key.MaxN, key.Smoothing); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO language_stats
	(run_id, min_ngram, max_ngram, smoothing, position, language, correct, wrong, should_be, precision, recall, f1)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, st := range stats {
		if _, err := stmt.ExecContext(ctx, key.RunID, key.MinN, key.MaxN, key.Smoothing, i,
			st.Language, st.Correct, st.Wrong, st.ShouldBe, st.Precision, st.Recall, st.F1); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LanguageStats returns the per-language stats in recorded order
func (s *sqliteStore) LanguageStats(ctx context.Context, key store.Key) ([]store.LanguageStat, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT language, correct, wrong, should_be, precision, recall, f1
FROM language_stats
WHERE run_id = ? AND min_ngram = ? AND max_ngram = ? AND smoothing = ?
ORDER BY position;
`, key.RunID, key.MinN, key.MaxN, key.Smoothing)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []store.LanguageStat
	for rows.Next() {
		var st store.LanguageStat
		if err := rows.Scan(&st.Language, &st.Correct, &st.Wrong, &st.ShouldBe, &st.Precision, &st.Recall, &st.F1); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
