package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"corrboard/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		tickers    TEXT    NOT NULL,
		missing    TEXT    NOT NULL DEFAULT '',
		timeframe  TEXT    NOT NULL,
		method     TEXT    NOT NULL,
		lag        TEXT    NOT NULL DEFAULT '',
		lag_steps  INTEGER NOT NULL DEFAULT 0,
		top_n      INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pairs (
		run_id  INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		lagged  INTEGER NOT NULL,
		rank    INTEGER NOT NULL,
		asset_a TEXT    NOT NULL,
		asset_b TEXT    NOT NULL,
		value   REAL    NOT NULL,
		PRIMARY KEY (run_id, lagged, rank)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC)`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection keeps :memory: databases
	// shared across calls as well.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts the run and its pairs in one transaction and sets run.ID.
// A zero CreatedAt is stamped with the current time.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, tickers, missing, timeframe, method, lag, lag_steps, top_n)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.CreatedAt.UnixMilli(),
		strings.Join(run.Tickers, ","),
		strings.Join(run.Missing, ","),
		run.Timeframe,
		string(run.Method),
		run.Lag,
		run.LagSteps,
		run.TopN,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if err := insertPairs(ctx, tx, id, false, run.Pairs); err != nil {
		return err
	}
	if err := insertPairs(ctx, tx, id, true, run.LaggedPairs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	run.ID = id
	return nil
}

func insertPairs(ctx context.Context, tx *sql.Tx, runID int64, lagged bool, pairs []domain.RankedPair) error {
	for i, p := range pairs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pairs (run_id, lagged, rank, asset_a, asset_b, value) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, boolToInt(lagged), i, p.AssetA, p.AssetB, p.Value,
		)
		if err != nil {
			return fmt.Errorf("inserting pair %d: %w", i, err)
		}
	}
	return nil
}

// GetRun retrieves a run and its pairs by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, tickers, missing, timeframe, method, lag, lag_steps, top_n
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT lagged, asset_a, asset_b, value FROM pairs WHERE run_id = ? ORDER BY lagged, rank`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lagged int
			p      domain.RankedPair
		)
		if err := rows.Scan(&lagged, &p.AssetA, &p.AssetB, &p.Value); err != nil {
			return nil, err
		}
		if lagged != 0 {
			run.LaggedPairs = append(run.LaggedPairs, p)
		} else {
			run.Pairs = append(run.Pairs, p)
		}
	}
	return &run, rows.Err()
}

// ListRuns returns up to limit runs, most recent first. Pairs are not loaded.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, tickers, missing, timeframe, method, lag, lag_steps, top_n
		 FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (domain.Run, error) {
	var (
		run       domain.Run
		createdMs int64
		tickers   string
		missing   string
		method    string
	)
	err := sc.Scan(&run.ID, &createdMs, &tickers, &missing, &run.Timeframe, &method, &run.Lag, &run.LagSteps, &run.TopN)
	if err != nil {
		return run, err
	}
	run.CreatedAt = time.UnixMilli(createdMs).UTC()
	run.Tickers = splitList(tickers)
	run.Missing = splitList(missing)
	run.Method = domain.Method(method)
	return run, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
