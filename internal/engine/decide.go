// Package engine decides how to react to persisted task state and drives
// one task run to completion or interruption, checkpointing along the way.
package engine

import (
	"github.com/forgedev/forge/internal/state"
	"github.com/forgedev/forge/internal/task"
)

// Decision is the action selected for an invocation based on what the
// state store holds for the feature identity.
type Decision string

const (
	// StartFresh means no usable prior record exists; create a new one.
	StartFresh Decision = "start_fresh"
	// Resume means a resumable record exists; continue from its last
	// checkpoint. A pending record also maps here and is executed as a
	// fresh run under the existing identity.
	Resume Decision = "resume"
	// ReportCompletion means the task already finished; return the
	// stored result without executing anything.
	ReportCompletion Decision = "report_completion"
	// AskRetryOrFresh means the task previously failed; the caller must
	// explicitly choose between retrying and restarting.
	AskRetryOrFresh Decision = "ask_retry_or_fresh"
)

// Decide maps the persisted state of a feature identity to an action.
// It is a pure function of record presence and state; caller intent
// (resume flags, retry choices) gates which outcomes are acted on but
// never changes the decision itself.
func Decide(rec *state.Record, found bool, requested task.Kind) (Decision, error) {
	if !found {
		return StartFresh, nil
	}
	if rec.Task.Kind != requested {
		return "", &KindMismatchError{
			FeatureID: rec.Feature.ID,
			Requested: requested,
			Stored:    rec.Task.Kind,
		}
	}
	switch rec.Status.State {
	case state.StateCompleted:
		return ReportCompletion, nil
	case state.StateFailed:
		return AskRetryOrFresh, nil
	default:
		// in_progress resumes from the last checkpoint; pending never
		// actually started, so it resumes as a fresh run with the same
		// identity.
		return Resume, nil
	}
}
