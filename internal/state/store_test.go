package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgedev/forge/internal/task"
)

func testRecord(t *testing.T) *Record {
	t.Helper()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return NewRecord("add-auth", "Add authentication", task.KindImplementation, now)
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	rec, found, err := store.Load("0007")
	require.NoError(t, err, "a missing record is a normal fresh-start branch, not an error")
	assert.False(t, found)
	assert.Nil(t, rec)
	assert.False(t, store.Exists("0007"))
}

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	rec := testRecord(t)
	rec.MarkInProgress("run-1")
	rec.Status.CurrentPhase = "phase_2"
	rec.Status.CurrentStep = "step_3"
	rec.Execution = Stats{Turns: 10, Cost: Cost{InputTokens: 1200, OutputTokens: 340, TotalCostUSD: 0.42}}
	rec.Context.Worktree = Worktree{Path: "/repo/.trees/add-auth", Branch: "feature/add-auth"}
	rec.Context.Plan = "1. do the thing"

	require.NoError(t, store.Save(rec))
	assert.True(t, store.Exists(rec.Feature.ID))

	got, found, err := store.Load(rec.Feature.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.Feature, got.Feature)
	assert.Equal(t, rec.Task, got.Task)
	assert.Equal(t, StateInProgress, got.Status.State)
	assert.Equal(t, "phase_2", got.Status.CurrentPhase)
	assert.Equal(t, rec.Execution, got.Execution)
	assert.Equal(t, rec.Context.Worktree, got.Context.Worktree)
	assert.Equal(t, rec.Context.Plan, got.Context.Plan)
	assert.Nil(t, got.Result)
}

func TestStore_SaveSetsUpdatedAt(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC)
	store := NewStore(t.TempDir()).WithClock(func() time.Time { return fixed })

	rec := testRecord(t)
	rec.MarkInProgress("run-1")
	require.NoError(t, store.Save(rec))

	got, _, err := store.Load(rec.Feature.ID)
	require.NoError(t, err)
	assert.Equal(t, fixed, got.Timestamps.UpdatedAt)
}

func TestStore_LoadCorruptYAML(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	dir := store.FeatureDir("0042")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, RecordFileName)
	require.NoError(t, os.WriteFile(path, []byte("{{{{not yaml"), 0o644))

	_, _, err := store.Load("0042")
	var corrupt *CorruptStateError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "0042", corrupt.FeatureID)
	assert.Equal(t, path, corrupt.Path)

	// The unreadable record must survive for manual inspection.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestStore_LoadInvalidRecordIsCorrupt(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	dir := store.FeatureDir("0042")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// Parseable YAML, but result present without completed state.
	content := `
feature: {name: add-auth, id: "0042"}
task: {kind: implementation, template: implement}
status: {state: in_progress}
execution: {turns: 3, cost: {input_tokens: 1, output_tokens: 1, total_cost_usd: 0.1}}
result: {pr: "42"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, RecordFileName), []byte(content), 0o644))

	_, _, err := store.Load("0042")
	var corrupt *CorruptStateError
	require.ErrorAs(t, err, &corrupt)
	assert.Contains(t, corrupt.Reason, "result")
}

func TestStore_SaveRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	rec := testRecord(t)
	rec.Status.State = StateCompleted // completed without result

	err := store.Save(rec)
	require.Error(t, err)
	assert.False(t, store.Exists(rec.Feature.ID))
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	rec := testRecord(t)
	require.NoError(t, store.Save(rec))

	entries, err := os.ReadDir(store.FeatureDir(rec.Feature.ID))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, RecordFileName, entries[0].Name())
}

func TestStore_Discard(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	rec := testRecord(t)
	require.NoError(t, store.Save(rec))
	require.True(t, store.Exists(rec.Feature.ID))

	require.NoError(t, store.Discard(rec.Feature.ID))
	assert.False(t, store.Exists(rec.Feature.ID))

	// Discarding an absent record is a no-op.
	require.NoError(t, store.Discard(rec.Feature.ID))
}

func TestStore_List(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	now := time.Now().UTC()
	for _, name := range []string{"add-auth", "fix-search", "update-deps"} {
		rec := NewRecord(name, "", task.KindPlanning, now)
		require.NoError(t, store.Save(rec))
	}

	records, corrupt, err := store.List()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Empty(t, corrupt)
}

func TestStore_ListReportsCorruptRecords(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	rec := NewRecord("add-auth", "", task.KindPlanning, time.Now().UTC())
	require.NoError(t, store.Save(rec))

	dir := store.FeatureDir("9999")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, RecordFileName), []byte("{not yaml"), 0o644))

	records, corrupt, err := store.List()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.Len(t, corrupt, 1)
	assert.Equal(t, "9999", corrupt[0].FeatureID)
	assert.FileExists(t, corrupt[0].Path, "the unreadable record is left in place")
}

func TestStats_AtLeast(t *testing.T) {
	t.Parallel()

	base := Stats{Turns: 10, Cost: Cost{InputTokens: 100, OutputTokens: 50, TotalCostUSD: 0.5}}

	assert.True(t, base.AtLeast(base), "identical stats do not regress")
	assert.True(t, Stats{Turns: 11, Cost: base.Cost}.AtLeast(base))
	assert.False(t, Stats{Turns: 9, Cost: base.Cost}.AtLeast(base))
	assert.False(t, Stats{Turns: 10, Cost: Cost{InputTokens: 99, OutputTokens: 50, TotalCostUSD: 0.5}}.AtLeast(base))
	assert.False(t, Stats{Turns: 10, Cost: Cost{InputTokens: 100, OutputTokens: 50, TotalCostUSD: 0.4}}.AtLeast(base))
}

func TestRecord_SetStats(t *testing.T) {
	t.Parallel()

	rec := testRecord(t)
	first := Stats{Turns: 5, Cost: Cost{InputTokens: 500, OutputTokens: 100, TotalCostUSD: 0.2}}
	require.NoError(t, rec.SetStats(first))

	// Re-applying the identical absolute totals is idempotent.
	require.NoError(t, rec.SetStats(first))
	assert.Equal(t, first, rec.Execution)

	// Regression is rejected.
	err := rec.SetStats(Stats{Turns: 4, Cost: first.Cost})
	require.Error(t, err)
	assert.Equal(t, first, rec.Execution, "failed update must not mutate counters")
}

func TestRecord_IdempotentCheckpointReplay(t *testing.T) {
	t.Parallel()

	// Simulates crash-and-retry: persisting the same absolute checkpoint
	// twice leaves the stored counters unchanged.
	store := NewStore(t.TempDir())
	rec := testRecord(t)
	rec.MarkInProgress("run-1")
	totals := Stats{Turns: 7, Cost: Cost{InputTokens: 900, OutputTokens: 210, TotalCostUSD: 0.31}}

	require.NoError(t, rec.SetStats(totals))
	require.NoError(t, store.Save(rec))
	require.NoError(t, rec.SetStats(totals))
	require.NoError(t, store.Save(rec))

	got, _, err := store.Load(rec.Feature.ID)
	require.NoError(t, err)
	assert.Equal(t, totals, got.Execution)
}

func TestRecord_Validate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	tests := []struct {
		name    string
		mutate  func(*Record)
		wantErr string
	}{
		{"valid pending", func(r *Record) {}, ""},
		{"empty name", func(r *Record) { r.Feature.Name = "" }, "feature.name"},
		{"bad id", func(r *Record) { r.Feature.ID = "12" }, "feature.id"},
		{"bad kind", func(r *Record) { r.Task.Kind = "deploy" }, "task.kind"},
		{"bad state", func(r *Record) { r.Status.State = "paused" }, "status.state"},
		{"result without completed", func(r *Record) { r.Result = map[string]any{"x": 1} }, "result"},
		{"negative turns", func(r *Record) { r.Execution.Turns = -1 }, "negative"},
		{
			"completed without completed_at",
			func(r *Record) {
				r.Status.State = StateCompleted
				r.Result = map[string]any{}
			},
			"completed_at",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := NewRecord("add-auth", "", task.KindPlanning, now)
			tt.mutate(rec)
			err := rec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRecord_MarkCompleted(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 3, 15, 0, 0, 0, time.UTC)
	rec := testRecord(t)
	rec.MarkInProgress("run-1")
	rec.MarkCompleted(map[string]any{"pull_request": "https://example.com/pr/7"}, now)

	require.NoError(t, rec.Validate())
	assert.Equal(t, StateCompleted, rec.Status.State)
	require.NotNil(t, rec.Timestamps.CompletedAt)
	assert.Equal(t, now, *rec.Timestamps.CompletedAt)

	// completed_at is set exactly once.
	later := now.Add(time.Hour)
	rec.MarkCompleted(rec.Result, later)
	assert.Equal(t, now, *rec.Timestamps.CompletedAt)
}
