package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so external readers don't block the writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logrus.Infof("sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			source      TEXT,
			item_count  INTEGER,
			duration_ms INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetch_ts ON fetch_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL UNIQUE,
			timestamp  INTEGER NOT NULL,
			model      TEXT,
			news_count INTEGER,
			status     TEXT,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_ts ON analysis_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS currency_strengths (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			currency  TEXT,
			strength  REAL,
			sentiment TEXT,
			rationale TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_strength_run ON currency_strengths(run_id)`,

		`CREATE TABLE IF NOT EXISTS correlations (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			pair1          TEXT,
			pair2          TEXT,
			strength       REAL,
			recommendation TEXT,
			rationale      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_correlation_run ON correlations(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordFetch(run *FetchRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetch_runs
		(timestamp, source, item_count, duration_ms, error)
		VALUES (?,?,?,?,?)`,
		run.Timestamp.Unix(), run.Source, run.ItemCount, run.Duration.Milliseconds(), run.Error,
	)
	return err
}

// RecordAnalysis writes the run row and its records in one transaction.
func (r *SQLiteRecorder) RecordAnalysis(run *AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO analysis_runs
		(run_id, timestamp, model, news_count, status, error)
		VALUES (?,?,?,?,?,?)`,
		run.RunID, run.Timestamp.Unix(), run.Model, run.NewsCount, run.Status, run.Error,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if a := run.Analysis; a != nil {
		for _, s := range a.Strengths {
			if _, err := tx.Exec(`INSERT INTO currency_strengths
				(run_id, currency, strength, sentiment, rationale)
				VALUES (?,?,?,?,?)`,
				run.RunID, s.Currency, s.Strength, string(s.Sentiment), s.Rationale,
			); err != nil {
				return fmt.Errorf("insert strength: %w", err)
			}
		}
		for _, c := range a.Correlations {
			if _, err := tx.Exec(`INSERT INTO correlations
				(run_id, pair1, pair2, strength, recommendation, rationale)
				VALUES (?,?,?,?,?,?)`,
				run.RunID, c.Pair1, c.Pair2, c.Strength, c.Recommendation, c.Rationale,
			); err != nil {
				return fmt.Errorf("insert correlation: %w", err)
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) Close() error {
	logrus.Info("closing sqlite recorder")
	return r.db.Close()
}

// New returns a SQLiteRecorder for a non-empty path and a NoopRecorder otherwise.
func New(dbPath string) (Recorder, error) {
	if dbPath == "" {
		return NewNoopRecorder(), nil
	}
	return NewSQLiteRecorder(dbPath)
}
