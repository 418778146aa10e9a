package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleResult() RunResult {
	return RunResult{
		Codes:      3,
		Units:      2,
		SplitFiles: 2,
		Sources: []SourceStat{
			{Kind: "airport", File: "APT_BASE.csv", Rows: 2, Accepted: 2},
			{Kind: "fix", File: "FIX_BASE.csv", Rows: 2, Accepted: 1, Rejected: 1},
			{Kind: "navaid", File: "NAV_BASE.csv", Error: "nasr: source empty"},
		},
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLite(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLite_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	run, err := s.StartRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusRunning, runs[0].Status)
	assert.Nil(t, runs[0].FinishedAt)
	assert.Empty(t, runs[0].Sources)

	require.NoError(t, s.CompleteRun(ctx, run.ID, sampleResult()))

	runs, err = s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, RunStatusComplete, got.Status)
	require.NotNil(t, got.FinishedAt)
	assert.False(t, got.FinishedAt.Before(got.StartedAt))
	assert.Equal(t, 3, got.Codes)
	assert.Equal(t, 2, got.Units)
	assert.Equal(t, 2, got.SplitFiles)
	assert.Equal(t, sampleResult().Sources, got.Sources)
	assert.Empty(t, got.Error)
}

func TestSQLite_FailRun(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	run, err := s.StartRun(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailRun(ctx, run.ID, RunResult{}, eris.New("pipeline: write manifest")))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Equal(t, "pipeline: write manifest", runs[0].Error)
	assert.Empty(t, runs[0].Sources)
}

func TestSQLite_FinishUnknownRun(t *testing.T) {
	s := newTestSQLite(t)

	err := s.CompleteRun(context.Background(), "missing", RunResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestSQLite_ListRunsNewestFirstWithLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	var ids []string
	for range 3 {
		run, err := s.StartRun(ctx)
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverNone, "")
	require.NoError(t, err)
	assert.IsType(t, NopStore{}, s)

	s, err = Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mysql", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mysql"`)
}

func TestNopStore(t *testing.T) {
	ctx := context.Background()
	var s Store = NopStore{}

	run, err := s.StartRun(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.NoError(t, s.CompleteRun(ctx, run.ID, sampleResult()))
	assert.NoError(t, s.FailRun(ctx, run.ID, RunResult{}, nil))

	runs, err := s.ListRuns(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, s.Close())
}
