package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// MemoryPath opens a private in-memory SQLite database.
const MemoryPath = ":memory:"

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (creating if needed) the database at dbPath and
// initializes its schema. The parent directory is created.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	dsn := MemoryPath
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer; it also keeps one shared
	// connection for :memory: databases.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if dbPath == MemoryPath {
		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
	}

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database path.
func (s *SQLiteRunStore) Path() string { return s.dbPath }

// CreateRun implements RunStore.
func (s *SQLiteRunStore) CreateRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.State == "" {
		run.State = StateRunning
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			id, created_at, finished_at, rows, cols, dim, mode, neighborhood, seed, samples, config,
			state, epochs, updates, initial_error, final_error, final_order
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.CreatedAt), nullTime(run.FinishedAt), run.Rows, run.Cols, run.Dim, run.Mode, run.Neighborhood,
		int64(run.Seed), run.Samples, nullString(run.Config),
		run.State, run.Epochs, run.Updates, run.InitialError, run.FinalError, run.FinalOrder,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return run.ID, nil
}

// RecordEpoch implements RunStore.
func (s *SQLiteRunStore) RecordEpoch(ctx context.Context, runID string, rec EpochRecord) error {
	if err := s.exists(ctx, runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO epochs (
			run_id, epoch, step, learning_rate, radius, quantization_error, order_parameter, mean_phase
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Epoch, rec.Step, rec.LearningRate, rec.Radius,
		rec.QuantizationError, rec.OrderParameter, rec.MeanPhase,
	)
	if err != nil {
		return fmt.Errorf("failed to record epoch %d: %w", rec.Epoch, err)
	}
	return nil
}

// FinishRun implements RunStore.
func (s *SQLiteRunStore) FinishRun(ctx context.Context, runID string, summary Summary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?, state = ?, epochs = ?, updates = ?,
			initial_error = ?, final_error = ?, final_order = ?
		WHERE id = ?`,
		formatTime(time.Now()), summary.State, summary.Epochs, summary.Updates,
		summary.InitialError, summary.FinalError, summary.FinalOrder, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, created_at, finished_at, rows, cols, dim, mode, neighborhood, seed, samples, config,
	state, epochs, updates, initial_error, final_error, final_order`

// GetRun implements RunStore.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns implements RunStore.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Epochs implements RunStore.
func (s *SQLiteRunStore) Epochs(ctx context.Context, runID string) ([]EpochRecord, error) {
	if err := s.exists(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, step, learning_rate, radius, quantization_error, order_parameter, mean_phase
		FROM epochs WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	defer rows.Close()

	var out []EpochRecord
	for rows.Next() {
		var e EpochRecord
		if err := rows.Scan(&e.Epoch, &e.Step, &e.LearningRate, &e.Radius,
			&e.QuantizationError, &e.OrderParameter, &e.MeanPhase); err != nil {
			return nil, fmt.Errorf("failed to scan epoch: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query epochs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteRunStore) exists(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		run        Run
		createdAt  string
		finishedAt sql.NullString
		seed       int64
		config     sql.NullString
	)
	err := sc.Scan(&run.ID, &createdAt, &finishedAt, &run.Rows, &run.Cols, &run.Dim,
		&run.Mode, &run.Neighborhood, &seed, &run.Samples, &config,
		&run.State, &run.Epochs, &run.Updates, &run.InitialError, &run.FinalError, &run.FinalOrder)
	if err != nil {
		return nil, err
	}

	run.Seed = uint64(seed)
	run.Config = config.String
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	if finishedAt.Valid {
		if run.FinishedAt, err = parseTime(finishedAt.String); err != nil {
			return nil, fmt.Errorf("finished_at: %w", err)
		}
	}
	return &run, nil
}

// Helper functions

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
