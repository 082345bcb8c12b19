package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/forgedev/forge/internal/logging"
	"github.com/forgedev/forge/internal/prompt"
	"github.com/forgedev/forge/internal/state"
	"github.com/forgedev/forge/internal/task"
)

// RunRequest describes one CLI invocation of a feature task.
type RunRequest struct {
	FeatureName string
	Kind        task.Kind
	Description string

	// Resume permits the Resume outcome for an in_progress record.
	Resume bool
	// Retry resolves AskRetryOrFresh in favor of resuming the failed run.
	Retry bool
	// Fresh discards any existing record and starts over.
	Fresh bool

	// WorkDir is the directory the agent operates in.
	WorkDir string
	// Worktree is the worktree assigned to records created by this
	// invocation. Existing records keep the worktree they were created
	// with.
	Worktree state.Worktree
	// Vars is extra render context (repository files, project metadata).
	Vars map[string]any
}

// RunOutcome reports what the invocation decided and, when no execution
// happened, why.
type RunOutcome struct {
	Decision Decision
	Record   *state.Record
	// Result is the stored outcome payload for ReportCompletion.
	Result map[string]any
}

// Runner composes the decision engine, the template resolver and the
// execution driver around a single feature identity, holding the
// advisory lock for the whole decide-and-execute cycle.
type Runner struct {
	store    *state.Store
	registry *prompt.Registry
	driver   *Driver
	logger   *logging.Logger
	now      func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(store *state.Store, registry *prompt.Registry, driver *Driver, logger *logging.Logger) *Runner {
	return &Runner{
		store:    store,
		registry: registry,
		driver:   driver,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the runner's clock. For tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run executes one invocation end to end: acquire the feature lock, read
// state, decide, resolve configuration, render the prompt and drive the
// agent. The lock is released on every exit path.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunOutcome, error) {
	featureID := task.FeatureID(req.FeatureName)

	lock, err := state.AcquireLock(r.store.FeatureDir(featureID), featureID, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			r.logger.Warn("lock release failed", "feature", featureID, "error", releaseErr.Error())
		}
	}()

	rec, found, err := r.store.Load(featureID)
	if err != nil {
		return nil, err
	}

	var prior *state.Record
	if req.Fresh && found {
		r.logger.Info("discarding prior record for fresh start", "feature", featureID)
		if err := r.store.Discard(featureID); err != nil {
			return nil, err
		}
		prior = rec
		rec, found = nil, false
	}

	decision, err := Decide(rec, found, req.Kind)
	if err != nil {
		return nil, err
	}

	switch decision {
	case ReportCompletion:
		return &RunOutcome{Decision: ReportCompletion, Record: rec, Result: rec.Result}, nil

	case AskRetryOrFresh:
		if !req.Retry {
			return &RunOutcome{Decision: AskRetryOrFresh, Record: rec}, nil
		}
		// Retry treats the failed record as resumable.
		return r.resume(ctx, req, rec)

	case Resume:
		if rec.Status.State == state.StatePending {
			// The record exists but execution never started. Run it as a
			// fresh task under the existing identity.
			return r.startFresh(ctx, req, rec, nil)
		}
		if !req.Resume {
			return nil, fmt.Errorf("feature %s (%s) has an in-progress record; pass --resume to continue or --fresh to start over",
				req.FeatureName, featureID)
		}
		return r.resume(ctx, req, rec)

	default: // StartFresh
		rec = state.NewRecord(req.FeatureName, req.Description, req.Kind, r.now())
		return r.startFresh(ctx, req, rec, prior)
	}
}

// startFresh drives a record that has not executed yet. prior, when
// non-nil, is a record for the same feature that a fresh start just
// discarded; a plan it produced carries over into the new run.
func (r *Runner) startFresh(ctx context.Context, req RunRequest, rec *state.Record, prior *state.Record) (*RunOutcome, error) {
	if rec.Context.Worktree == (state.Worktree{}) {
		rec.Context.Worktree = req.Worktree
	}
	if prior != nil && prior.Task.Kind == task.KindPlanning &&
		prior.Status.State == state.StateCompleted &&
		rec.Task.Kind == task.KindImplementation {
		rec.Context.Plan = prior.Context.Plan
	}

	cfg, err := r.registry.Resolve(rec.Task.Kind)
	if err != nil {
		return nil, err
	}

	vars := map[string]any{
		"feature_name":        rec.Feature.Name,
		"feature_id":          rec.Feature.ID,
		"feature_description": rec.Feature.Description,
		"plan":                rec.Context.Plan,
		"worktree_path":       rec.Context.Worktree.Path,
	}
	for k, v := range req.Vars {
		vars[k] = v
	}
	promptText, err := r.registry.Render(rec.Task.Kind.TemplateName(), vars)
	if err != nil {
		return nil, err
	}

	if err := r.driver.Run(ctx, rec, promptText, cfg, r.workDir(req, rec)); err != nil {
		return nil, err
	}
	return &RunOutcome{Decision: StartFresh, Record: rec, Result: rec.Result}, nil
}

func (r *Runner) resume(ctx context.Context, req RunRequest, rec *state.Record) (*RunOutcome, error) {
	rc, err := NewResumeContext(rec, r.registry)
	if err != nil {
		return nil, err
	}
	promptText, err := rc.Render(r.registry)
	if err != nil {
		return nil, err
	}

	if err := r.driver.Run(ctx, rec, promptText, rc.Config, r.workDir(req, rec)); err != nil {
		return nil, err
	}
	return &RunOutcome{Decision: Resume, Record: rec, Result: rec.Result}, nil
}

// workDir prefers the invocation's working directory. The recorded
// worktree path is prompt context for the agent, which checks the
// worktree out itself; it falls back to being the working directory
// only when the invocation supplies none.
func (r *Runner) workDir(req RunRequest, rec *state.Record) string {
	if req.WorkDir != "" {
		return req.WorkDir
	}
	return rec.Context.Worktree.Path
}
