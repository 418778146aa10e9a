// Package store records build runs: when they ran, what each source table
// contributed, and how many codes and units they produced.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// RunStatus is the lifecycle state of a build run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SourceStat is the outcome of one source table in a run.
type SourceStat struct {
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Error    string `json:"error,omitempty"`
}

// RunResult is what a finished run reports.
type RunResult struct {
	Codes      int          `json:"codes"`
	Units      int          `json:"units"`
	SplitFiles int          `json:"split_files"`
	Sources    []SourceStat `json:"sources"`
}

// Run is one recorded build.
type Run struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	RunResult
	Error string `json:"error,omitempty"`
}

// Store persists the run log.
type Store interface {
	StartRun(ctx context.Context) (*Run, error)
	CompleteRun(ctx context.Context, runID string, result RunResult) error
	FailRun(ctx context.Context, runID string, result RunResult, runErr error) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Drivers accepted by Open.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the run log for driver and applies migrations.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "", DriverNone:
		return NopStore{}, nil
	case DriverSQLite:
		s, err = NewSQLite(dsn)
	case DriverPostgres:
		s, err = NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NopStore discards the run log.
type NopStore struct{}

func (NopStore) StartRun(context.Context) (*Run, error) {
	return &Run{ID: uuid.New().String(), Status: RunStatusRunning, StartedAt: time.Now().UTC()}, nil
}

func (NopStore) CompleteRun(context.Context, string, RunResult) error { return nil }

func (NopStore) FailRun(context.Context, string, RunResult, error) error { return nil }

func (NopStore) ListRuns(context.Context, int) ([]Run, error) { return nil, nil }

func (NopStore) Migrate(context.Context) error { return nil }

func (NopStore) Close() error { return nil }

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}
