package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/aerocodes/internal/db"
)

// PostgresStore implements Store using pgxpool. Per-source stats are kept on
// the run row and also loaded into run_sources with COPY for ad hoc queries.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ,
	codes       INTEGER NOT NULL DEFAULT 0,
	units       INTEGER NOT NULL DEFAULT 0,
	split_files INTEGER NOT NULL DEFAULT 0,
	sources     JSONB NOT NULL DEFAULT '[]',
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS run_sources (
	run_id   TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	kind     TEXT NOT NULL,
	file     TEXT NOT NULL,
	rows     INTEGER NOT NULL,
	accepted INTEGER NOT NULL,
	rejected INTEGER NOT NULL,
	error    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_sources_run_id ON run_sources(run_id);
`

var runSourceColumns = []string{"run_id", "kind", "file", "rows", "accepted", "rejected", "error"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context) (*Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &Run{ID: id, Status: RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result RunResult) error {
	return s.finish(ctx, runID, RunStatusComplete, result, "")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, result RunResult, runErr error) error {
	return s.finish(ctx, runID, RunStatusFailed, result, errorText(runErr))
}

func (s *PostgresStore) finish(ctx context.Context, runID string, status RunStatus, result RunResult, errText string) error {
	sourcesJSON, err := json.Marshal(nonNilSources(result.Sources))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, finished_at = $2, codes = $3, units = $4, split_files = $5, sources = $6, error = $7 WHERE id = $8`,
		string(status), time.Now().UTC(), result.Codes, result.Units, result.SplitFiles, sourcesJSON, errText, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}

	rows := make([][]any, 0, len(result.Sources))
	for _, src := range result.Sources {
		rows = append(rows, []any{runID, src.Kind, src.File, src.Rows, src.Accepted, src.Rejected, src.Error})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "run_sources", runSourceColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: record sources for run %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, finished_at, codes, units, split_files, sources, error
		 FROM runs ORDER BY started_at DESC LIMIT $1`,
		listLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r           Run
			status      string
			sourcesJSON []byte
		)
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &r.FinishedAt, &r.Codes, &r.Units, &r.SplitFiles, &sourcesJSON, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = RunStatus(status)
		if err := json.Unmarshal(sourcesJSON, &r.Sources); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal sources")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
