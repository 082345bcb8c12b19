package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgedev/forge/internal/state"
	"github.com/forgedev/forge/internal/task"
)

func record(t *testing.T, kind task.Kind, st state.State) *state.Record {
	t.Helper()
	rec := state.NewRecord("add-auth", "add authentication", kind, time.Unix(1700000000, 0))
	rec.Status.State = st
	if st == state.StateCompleted {
		now := time.Unix(1700000100, 0)
		rec.MarkCompleted(map[string]any{"summary": "done"}, now)
	}
	return rec
}

func TestDecideNoRecordStartsFresh(t *testing.T) {
	t.Parallel()

	decision, err := Decide(nil, false, task.KindImplementation)
	require.NoError(t, err)
	assert.Equal(t, StartFresh, decision)
}

func TestDecideTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state state.State
		want  Decision
	}{
		{"completed reports completion", state.StateCompleted, ReportCompletion},
		{"failed asks retry or fresh", state.StateFailed, AskRetryOrFresh},
		{"in_progress resumes", state.StateInProgress, Resume},
		{"pending resumes as never started", state.StatePending, Resume},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := record(t, task.KindImplementation, tt.state)
			decision, err := Decide(rec, true, task.KindImplementation)
			require.NoError(t, err)
			assert.Equal(t, tt.want, decision)
		})
	}
}

func TestDecideKindMismatch(t *testing.T) {
	t.Parallel()

	rec := record(t, task.KindPlanning, state.StateInProgress)

	_, err := Decide(rec, true, task.KindImplementation)
	require.Error(t, err)

	var mismatch *KindMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, rec.Feature.ID, mismatch.FeatureID)
	assert.Equal(t, task.KindImplementation, mismatch.Requested)
	assert.Equal(t, task.KindPlanning, mismatch.Stored)
}
