package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keller/dunesmoke/internal/policy"
	"github.com/keller/dunesmoke/internal/report"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(runID string) *RunRecord {
	started := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	return &RunRecord{
		RunID:          runID,
		StartedAt:      started,
		FinishedAt:     started.Add(42 * time.Second),
		OCamlVersion:   "5.3.0",
		DuneVersion:    "3.16.0",
		Arch:           "aarch64",
		GCWorkaround:   true,
		Classification: string(policy.KnownIssue),
		ExitCode:       0,
		Scenarios: []ScenarioRecord{
			{Suite: "build", Scenario: "Bytecode build", Passed: true, DurationMS: 120},
			{Suite: "build", Scenario: "Native build", Passed: false, Message: "exit status 2", DurationMS: 340},
		},
	}
}

func TestNewStore(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{
			name:    "creates database successfully",
			dbPath:  filepath.Join(t.TempDir(), "test.db"),
			wantErr: false,
		},
		{
			name:    "handles in-memory database",
			dbPath:  ":memory:",
			wantErr: false,
		},
		{
			name:    "returns error for invalid path",
			dbPath:  "/proc/invalid/nonexistent/db.db",
			wantErr: true,
		},
		{
			name:    "creates parent directories if needed",
			dbPath:  filepath.Join(t.TempDir(), "nested", "dir", "test.db"),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, store)
			defer store.Close()

			// Both migrations should have been applied
			version, err := store.GetLatestVersion()
			require.NoError(t, err)
			assert.Equal(t, 2, version)

			assert.Equal(t, tt.dbPath, store.dbPath)
		})
	}
}

func TestInitSchema(t *testing.T) {
	store := newTestStore(t)

	tables := []string{"runs", "scenario_results", "schema_version"}
	for _, table := range tables {
		exists, err := store.tableExists(table)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}

	indexes := []string{
		"idx_runs_run_id",
		"idx_runs_created_at",
		"idx_runs_classification",
		"idx_scenario_results_run_id",
		"idx_scenario_results_passed",
	}
	for _, index := range indexes {
		exists, err := store.indexExists(index)
		require.NoError(t, err)
		assert.True(t, exists, "index %s should exist", index)
	}
}

func TestRecordRunAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-abc")
	require.NoError(t, store.RecordRun(ctx, rec))
	assert.Greater(t, rec.ID, int64(0), "RecordRun should set the row id")

	got, err := store.GetRun(ctx, "run-abc")
	require.NoError(t, err)

	assert.Equal(t, rec.RunID, got.RunID)
	assert.WithinDuration(t, rec.StartedAt, got.StartedAt, time.Second)
	assert.WithinDuration(t, rec.FinishedAt, got.FinishedAt, time.Second)
	assert.Equal(t, "5.3.0", got.OCamlVersion)
	assert.Equal(t, "3.16.0", got.DuneVersion)
	assert.Equal(t, "aarch64", got.Arch)
	assert.True(t, got.GCWorkaround)
	assert.Equal(t, string(policy.KnownIssue), got.Classification)
	assert.Equal(t, 0, got.ExitCode)
	assert.False(t, got.CreatedAt.IsZero())

	assert.Equal(t, 1, got.PassedCount)
	assert.Equal(t, 1, got.FailedCount)

	require.Len(t, got.Scenarios, 2)
	assert.Equal(t, "Bytecode build", got.Scenarios[0].Scenario)
	assert.True(t, got.Scenarios[0].Passed)
	assert.Empty(t, got.Scenarios[0].Message)
	assert.Equal(t, "Native build", got.Scenarios[1].Scenario)
	assert.False(t, got.Scenarios[1].Passed)
	assert.Equal(t, "exit status 2", got.Scenarios[1].Message)
	assert.Equal(t, int64(340), got.Scenarios[1].DurationMS)
	assert.Equal(t, "build", got.Scenarios[1].Suite)
}

func TestRecordRunWithoutScenarios(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("run-empty")
	rec.Scenarios = nil
	require.NoError(t, store.RecordRun(ctx, rec))

	got, err := store.GetRun(ctx, "run-empty")
	require.NoError(t, err)
	assert.Empty(t, got.Scenarios)
	assert.Equal(t, 0, got.PassedCount)
	assert.Equal(t, 0, got.FailedCount)
}

func TestRecordRunDuplicateRunID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRun(ctx, sampleRecord("run-dup")))
	err := store.RecordRun(ctx, sampleRecord("run-dup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
}

func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: no-such-run")
}

func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		rec := sampleRecord(fmt.Sprintf("run-%d", i))
		require.NoError(t, store.RecordRun(ctx, rec))
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Newest first
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)
	assert.Equal(t, "run-1", runs[2].RunID)

	// Counts come back without loading scenario rows
	assert.Equal(t, 1, runs[0].PassedCount)
	assert.Equal(t, 1, runs[0].FailedCount)
	assert.Empty(t, runs[0].Scenarios)

	limited, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-3", limited[0].RunID)
	assert.Equal(t, "run-2", limited[1].RunID)
}

func TestListRunsEmpty(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.RecordRun(ctx, sampleRecord(fmt.Sprintf("run-%d", i))))
	}

	deleted, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-5", runs[0].RunID)
	assert.Equal(t, "run-4", runs[1].RunID)

	_, err = store.GetRun(ctx, "run-1")
	assert.Error(t, err)

	// Scenario rows for pruned runs must be gone too
	var orphans int
	err = store.db.QueryRow(
		`SELECT COUNT(*) FROM scenario_results WHERE run_id NOT IN (SELECT run_id FROM runs)`,
	).Scan(&orphans)
	require.NoError(t, err)
	assert.Equal(t, 0, orphans)
}

func TestPruneKeepAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordRun(ctx, sampleRecord("run-keep")))

	deleted, err := store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestFromReport(t *testing.T) {
	started := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)
	rep := &report.Report{
		RunID:        "run-report",
		StartedAt:    started,
		FinishedAt:   started.Add(time.Minute),
		OCamlVersion: "5.3.0",
		DuneVersion:  "3.16.0",
		Arch:         "aarch64",
		GCWorkaround: true,
		Suites: []report.SuiteReport{
			{
				Name:  "build",
				Label: "Build tests",
				Scenarios: []report.ScenarioReport{
					{Name: "Bytecode build", Passed: true, DurationMS: 120},
					{Name: "Native build", Passed: false, Message: "exit status 2", DurationMS: 340},
				},
			},
			{
				Name:  "consistency",
				Label: "CRC consistency tests",
				Scenarios: []report.ScenarioReport{
					{Name: "Multi-module CRC consistency", Passed: true, DurationMS: 200},
				},
			},
		},
		Classification: policy.KnownIssue,
		ExitCode:       0,
	}

	rec := FromReport(rep)
	assert.Equal(t, "run-report", rec.RunID)
	assert.Equal(t, string(policy.KnownIssue), rec.Classification)
	assert.Equal(t, 0, rec.ExitCode)
	assert.True(t, rec.GCWorkaround)

	require.Len(t, rec.Scenarios, 3)
	assert.Equal(t, "build", rec.Scenarios[0].Suite)
	assert.Equal(t, "Bytecode build", rec.Scenarios[0].Scenario)
	assert.Equal(t, "consistency", rec.Scenarios[2].Suite)
	assert.Equal(t, "Multi-module CRC consistency", rec.Scenarios[2].Scenario)

	// A flattened record survives the database round trip
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.RecordRun(ctx, rec))

	got, err := store.GetRun(ctx, "run-report")
	require.NoError(t, err)
	assert.Equal(t, 2, got.PassedCount)
	assert.Equal(t, 1, got.FailedCount)
	require.Len(t, got.Scenarios, 3)
}

func TestStoreReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.RecordRun(ctx, sampleRecord("run-persist")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetRun(ctx, "run-persist")
	require.NoError(t, err)
	assert.Equal(t, "run-persist", got.RunID)
}
