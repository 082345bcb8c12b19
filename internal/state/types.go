// Package state defines the persisted per-feature task record and the
// store that owns its on-disk layout. One record exists per feature
// identity; it is the single durable source of truth for resumption.
package state

import (
	"fmt"
	"time"

	"github.com/forgedev/forge/internal/task"
)

// State is the execution state of a feature task.
type State string

const (
	// StatePending means the record exists but execution never started.
	StatePending State = "pending"
	// StateInProgress means execution started and has not finished.
	// This is the only state that signals resumability after interruption.
	StateInProgress State = "in_progress"
	// StateCompleted means execution finished and a result is stored.
	StateCompleted State = "completed"
	// StateFailed means execution stopped on an unrecoverable error or a
	// budget cap. A failed record is resumable after an explicit retry.
	StateFailed State = "failed"
)

// Valid reports whether s is a known state value.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StateCompleted, StateFailed:
		return true
	}
	return false
}

// Feature identifies the feature a task belongs to. Immutable after creation.
type Feature struct {
	Name        string `yaml:"name"`
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
}

// Task describes the work the record tracks. Immutable after creation.
type Task struct {
	Kind        task.Kind `yaml:"kind"`
	Description string    `yaml:"description,omitempty"`
	Template    string    `yaml:"template"`
}

// Status is the mutable execution status, owned by the execution driver.
type Status struct {
	State        State  `yaml:"state"`
	CurrentPhase string `yaml:"current_phase,omitempty"`
	CurrentStep  string `yaml:"current_step,omitempty"`
	Message      string `yaml:"message,omitempty"`
}

// Cost holds token and spend counters. All fields are absolute totals.
type Cost struct {
	InputTokens  int64   `yaml:"input_tokens"`
	OutputTokens int64   `yaml:"output_tokens"`
	TotalCostUSD float64 `yaml:"total_cost_usd"`
}

// Stats holds execution counters. Counters never decrease across
// checkpoints of the same task.
type Stats struct {
	Turns int  `yaml:"turns"`
	Cost  Cost `yaml:"cost"`
}

// AtLeast reports whether every counter in s is >= the corresponding
// counter in prev.
func (s Stats) AtLeast(prev Stats) bool {
	return s.Turns >= prev.Turns &&
		s.Cost.InputTokens >= prev.Cost.InputTokens &&
		s.Cost.OutputTokens >= prev.Cost.OutputTokens &&
		s.Cost.TotalCostUSD >= prev.Cost.TotalCostUSD
}

// Worktree locates the git worktree a task operates in.
type Worktree struct {
	Path   string `yaml:"path,omitempty"`
	Branch string `yaml:"branch,omitempty"`
}

// Checkpoint records the last persisted progress unit.
type Checkpoint struct {
	Timestamp   time.Time `yaml:"timestamp"`
	Description string    `yaml:"description,omitempty"`
}

// Context carries data needed to re-render a continuation prompt.
type Context struct {
	Worktree       Worktree          `yaml:"worktree,omitempty"`
	Plan           string            `yaml:"plan,omitempty"`
	LastCheckpoint *Checkpoint       `yaml:"last_checkpoint,omitempty"`
	RunID          string            `yaml:"run_id,omitempty"`
	Agent          map[string]string `yaml:"agent_context,omitempty"`
}

// Timestamps tracks record lifecycle times.
type Timestamps struct {
	CreatedAt   time.Time  `yaml:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
}

// Record is the full persisted snapshot for one feature task.
type Record struct {
	Feature    Feature        `yaml:"feature"`
	Task       Task           `yaml:"task"`
	Status     Status         `yaml:"status"`
	Execution  Stats          `yaml:"execution"`
	Result     map[string]any `yaml:"result,omitempty"`
	Context    Context        `yaml:"context,omitempty"`
	Timestamps Timestamps     `yaml:"timestamps"`
}

// NewRecord creates a fresh pending record for a feature/kind pair.
func NewRecord(featureName, description string, kind task.Kind, now time.Time) *Record {
	return &Record{
		Feature: Feature{
			Name:        featureName,
			ID:          task.FeatureID(featureName),
			Description: description,
		},
		Task: Task{
			Kind:        kind,
			Description: description,
			Template:    kind.TemplateName(),
		},
		Status:     Status{State: StatePending},
		Timestamps: Timestamps{CreatedAt: now, UpdatedAt: now},
	}
}

// Validate checks the structural invariants every persisted record must
// satisfy. A record that fails validation is treated as corrupt.
func (r *Record) Validate() error {
	if r.Feature.Name == "" {
		return fmt.Errorf("feature.name is empty")
	}
	if !task.ValidFeatureID(r.Feature.ID) {
		return fmt.Errorf("feature.id %q is not a four-digit identifier", r.Feature.ID)
	}
	if !r.Task.Kind.Valid() {
		return fmt.Errorf("task.kind %q is not a known kind", r.Task.Kind)
	}
	if !r.Status.State.Valid() {
		return fmt.Errorf("status.state %q is not a known state", r.Status.State)
	}
	if (r.Status.State == StateCompleted) != (r.Result != nil) {
		return fmt.Errorf("result must be present exactly when state is completed (state=%s, result present=%t)",
			r.Status.State, r.Result != nil)
	}
	if (r.Status.State == StateCompleted) != (r.Timestamps.CompletedAt != nil) {
		return fmt.Errorf("completed_at must be set exactly when state is completed")
	}
	if r.Execution.Turns < 0 || r.Execution.Cost.InputTokens < 0 ||
		r.Execution.Cost.OutputTokens < 0 || r.Execution.Cost.TotalCostUSD < 0 {
		return fmt.Errorf("execution counters must not be negative")
	}
	return nil
}

// SetStats replaces the execution counters with new absolute totals.
// Regressing any counter is an error: checkpoints carry absolute values,
// so a lower total means the caller lost state.
func (r *Record) SetStats(next Stats) error {
	if !next.AtLeast(r.Execution) {
		return fmt.Errorf("execution counters for feature %s would regress (turns %d -> %d)",
			r.Feature.ID, r.Execution.Turns, next.Turns)
	}
	r.Execution = next
	return nil
}

// MarkInProgress transitions the record into in_progress.
func (r *Record) MarkInProgress(runID string) {
	r.Status.State = StateInProgress
	r.Context.RunID = runID
}

// MarkCompleted transitions the record into completed with its result.
// Both the result payload and completed_at are set exactly once.
func (r *Record) MarkCompleted(result map[string]any, now time.Time) {
	if result == nil {
		result = map[string]any{}
	}
	r.Status.State = StateCompleted
	r.Status.Message = "completed"
	r.Result = result
	if r.Timestamps.CompletedAt == nil {
		t := now
		r.Timestamps.CompletedAt = &t
	}
}

// MarkFailed transitions the record into failed with a cause message.
func (r *Record) MarkFailed(message string) {
	r.Status.State = StateFailed
	r.Status.Message = message
}
