// Package sqlite implements the JobStore interface on a local SQLite file.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/dwsmith1983/factcorpus/internal/provider"
	"github.com/dwsmith1983/factcorpus/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.JobStore = (*Store)(nil)

const ddl = `
CREATE TABLE IF NOT EXISTS build_jobs (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	entry_id   TEXT NOT NULL,
	attempt    INTEGER NOT NULL,
	outcome    TEXT NOT NULL,
	started_at TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS build_jobs_entry ON build_jobs (entry_id, id);
CREATE INDEX IF NOT EXISTS build_jobs_run ON build_jobs (run_id, id);
`

// Store is a JobStore backed by one SQLite connection.
type Store struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	logger *slog.Logger
}

// Open opens or creates the job database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating job store directory: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenCreate, sqlite.OpenReadWrite, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA synchronous = NORMAL"} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, ddl, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("creating job tables: %w", err)
	}
	return &Store{conn: conn, logger: logger}, nil
}

// PutJob inserts a job record.
func (s *Store) PutJob(_ context.Context, job types.BuildJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = sqlitex.ExecuteTransient(s.conn,
		`INSERT INTO build_jobs (id, run_id, entry_id, attempt, outcome, started_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		&sqlitex.ExecOptions{Args: []any{
			job.ID, job.RunID, job.Entry.ID, int64(job.Attempt), string(job.Outcome),
			job.StartedAt.UTC().Format(time.RFC3339Nano), string(data),
		}})
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", job.ID, err)
	}
	if s.conn.Changes() == 0 {
		return fmt.Errorf("%w: %s", provider.ErrJobExists, job.ID)
	}
	return nil
}

// GetJob returns one job by id.
func (s *Store) GetJob(_ context.Context, id string) (*types.BuildJob, error) {
	jobs, err := s.query(`SELECT data FROM build_jobs WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %s", provider.ErrJobNotFound, id)
	}
	return &jobs[0], nil
}

// ListJobs returns the attempts on one corpus entry, oldest first.
func (s *Store) ListJobs(_ context.Context, entryID string) ([]types.BuildJob, error) {
	return s.query(`SELECT data FROM build_jobs WHERE entry_id = ? ORDER BY id`, entryID)
}

// ListRun returns the jobs of one run, oldest first.
func (s *Store) ListRun(_ context.Context, runID string) ([]types.BuildJob, error) {
	return s.query(`SELECT data FROM build_jobs WHERE run_id = ? ORDER BY id`, runID)
}

// Close closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Store) query(q string, arg string) ([]types.BuildJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []types.BuildJob
	err := sqlitex.ExecuteTransient(s.conn, q, &sqlitex.ExecOptions{
		Args: []any{arg},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var job types.BuildJob
			if err := json.Unmarshal([]byte(stmt.ColumnText(0)), &job); err != nil {
				s.logger.Warn("skipping corrupt job record", "error", err)
				return nil
			}
			jobs = append(jobs, job)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	return jobs, nil
}
