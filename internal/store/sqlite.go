package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME,
	codes       INTEGER NOT NULL DEFAULT 0,
	units       INTEGER NOT NULL DEFAULT 0,
	split_files INTEGER NOT NULL DEFAULT 0,
	sources     TEXT NOT NULL DEFAULT '[]',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result RunResult) error {
	return s.finish(ctx, runID, RunStatusComplete, result, "")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, result RunResult, runErr error) error {
	return s.finish(ctx, runID, RunStatusFailed, result, errorText(runErr))
}

func (s *SQLiteStore) finish(ctx context.Context, runID string, status RunStatus, result RunResult, errText string) error {
	sourcesJSON, err := json.Marshal(nonNilSources(result.Sources))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, codes = ?, units = ?, split_files = ?, sources = ?, error = ? WHERE id = ?`,
		string(status), time.Now().UTC(), result.Codes, result.Units, result.SplitFiles, string(sourcesJSON), errText, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, finished_at, codes, units, split_files, sources, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row scannable) (*Run, error) {
	var (
		r           Run
		status      string
		finished    sql.NullTime
		sourcesJSON string
	)
	if err := row.Scan(&r.ID, &status, &r.StartedAt, &finished, &r.Codes, &r.Units, &r.SplitFiles, &sourcesJSON, &r.Error); err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = RunStatus(status)
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &r.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources")
	}
	return &r, nil
}

func nonNilSources(s []SourceStat) []SourceStat {
	if s == nil {
		return []SourceStat{}
	}
	return s
}
