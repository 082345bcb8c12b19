package engine

import (
	"fmt"

	"github.com/forgedev/forge/internal/prompt"
	"github.com/forgedev/forge/internal/state"
)

// ResumeContext is the per-resume reconstruction of everything needed to
// re-render a continuation prompt. It is derived from the persisted
// record and the original kind's resolved configuration; it is never
// persisted itself.
type ResumeContext struct {
	Record *state.Record
	Config prompt.ExecutionConfig
}

// NewResumeContext builds a ResumeContext for an interrupted record.
// The configuration is resolved from the record's original kind, not
// from the resume template's own front matter.
func NewResumeContext(rec *state.Record, registry *prompt.Registry) (*ResumeContext, error) {
	cfg, err := registry.ResolveResume(rec.Task.Kind)
	if err != nil {
		return nil, err
	}
	return &ResumeContext{Record: rec, Config: cfg}, nil
}

// RenderVars returns the variable set for rendering the resume template,
// including the original task's use_preset and tools values.
func (rc *ResumeContext) RenderVars() map[string]any {
	rec := rc.Record
	return map[string]any{
		"feature_name":  rec.Feature.Name,
		"feature_id":    rec.Feature.ID,
		"original_kind": string(rec.Task.Kind),
		"use_preset":    rc.Config.UsePreset,
		"tools":         rc.Config.Tools,
		"current_phase": rec.Status.CurrentPhase,
		"current_step":  rec.Status.CurrentStep,
		"turns_so_far":  rec.Execution.Turns,
		"cost_so_far":   fmt.Sprintf("%.2f", rec.Execution.Cost.TotalCostUSD),
		"worktree_path": rec.Context.Worktree.Path,
		"plan":          rec.Context.Plan,
	}
}

// Render produces the continuation prompt text.
func (rc *ResumeContext) Render(registry *prompt.Registry) (string, error) {
	return registry.Render("resume", rc.RenderVars())
}
