package engine

import (
	"fmt"

	"github.com/forgedev/forge/internal/task"
)

// KindMismatchError is returned when a persisted record's kind disagrees
// with the kind requested on the command line. Proceeding under either
// kind would corrupt the resume narrative, so the run is refused.
type KindMismatchError struct {
	FeatureID string
	Requested task.Kind
	Stored    task.Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("feature %s has a %s record but %s was requested; use --fresh to discard it",
		e.FeatureID, e.Stored, e.Requested)
}

// BudgetExceededError is returned when a turn or cost cap is hit. The
// record is left in failed state and remains resumable after a retry.
type BudgetExceededError struct {
	FeatureID string
	Limit     string
	Allowed   float64
	Used      float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("feature %s exceeded %s budget (%.2f of %.2f allowed)",
		e.FeatureID, e.Limit, e.Used, e.Allowed)
}

// AgentCallFailedError wraps an unrecoverable failure of the external
// agent call. The record is left in failed state.
type AgentCallFailedError struct {
	FeatureID string
	Reason    string
	Err       error
}

func (e *AgentCallFailedError) Error() string {
	return fmt.Sprintf("agent call for feature %s failed: %s", e.FeatureID, e.Reason)
}

func (e *AgentCallFailedError) Unwrap() error { return e.Err }
