// Package journal persists a local record of import runs in an embedded
// SQLite database. Every run gets a row, every created remote entity gets a
// row linked to its run, so an operator can answer "what did that import
// create" after the terminal scrollback is gone.
//
// The database runs in embedded mode with WAL so the watch daemon can write
// while the runs command reads.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Run statuses. A run that never reached Finish stays "running", which
// after a crash is itself useful information.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DB wraps the journal's database connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the journal database at path and
// initializes the schema. The caller must Close when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if _, err := db.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := db.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close journal database: %w", err)
	}
	db.conn = nil
	return nil
}

// initSchema creates the runs and creations tables. Idempotent.
func (db *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		last_phase TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS creations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_creations_run ON creations(run_id);
	CREATE INDEX IF NOT EXISTS idx_creations_kind ON creations(kind);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	return nil
}

// Run is one recorded import run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	LastPhase  string
	Error      string
	Creations  int
}

// Creation is one remote entity created during a run.
type Creation struct {
	RunID     int64
	Kind      string
	Name      string
	URL       string
	CreatedAt time.Time
}

// BeginRun inserts a new run in the running state and returns its id.
func (db *DB) BeginRun(ctx context.Context) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (started_at, status) VALUES (?, ?)`,
		time.Now().UTC().Format(time.RFC3339), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to record run start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	return id, nil
}

// SetPhase records the run's most recent phase.
func (db *DB) SetPhase(ctx context.Context, runID int64, phase string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE runs SET last_phase = ? WHERE id = ?`, phase, runID)
	if err != nil {
		return fmt.Errorf("failed to record run phase: %w", err)
	}
	return nil
}

// RecordCreation appends one created entity to the run.
func (db *DB) RecordCreation(ctx context.Context, runID int64, kind, name, url string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO creations (run_id, kind, name, url, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, kind, name, url, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record creation of %s %q: %w", kind, name, err)
	}
	return nil
}

// FinishRun marks the run succeeded or failed depending on runErr.
func (db *DB) FinishRun(ctx context.Context, runID int64, runErr error) error {
	status := StatusSucceeded
	msg := ""
	if runErr != nil {
		status = StatusFailed
		msg = runErr.Error()
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), status, msg, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first, each with its
// creation count.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.status, r.last_phase, r.error,
		       (SELECT COUNT(*) FROM creations c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.Status, &run.LastPhase, &run.Error, &run.Creations); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run start time: %w", err)
		}
		if finishedAt.Valid {
			ts, err := time.Parse(time.RFC3339, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse run finish time: %w", err)
			}
			run.FinishedAt = &ts
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return out, nil
}

// ListCreations returns every entity recorded for one run, in creation
// order.
func (db *DB) ListCreations(ctx context.Context, runID int64) ([]Creation, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT run_id, kind, name, url, created_at
		FROM creations
		WHERE run_id = ?
		ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list creations: %w", err)
	}
	defer rows.Close()

	var out []Creation
	for rows.Next() {
		var (
			c         Creation
			createdAt string
		)
		if err := rows.Scan(&c.RunID, &c.Kind, &c.Name, &c.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan creation: %w", err)
		}
		c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse creation time: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read creations: %w", err)
	}
	return out, nil
}
