package engine

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/forgedev/forge/internal/agent"
	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/logging"
	"github.com/forgedev/forge/internal/prompt"
	"github.com/forgedev/forge/internal/state"
	"github.com/forgedev/forge/internal/task"
)

// Driver runs one task against the agent client, checkpointing the
// agent's self-reported position into the state store as the stream
// progresses and folding the terminal result's usage into the record's
// absolute totals. Totals are absolute, so replaying a result never
// double-counts.
type Driver struct {
	store  *state.Store
	client agent.Client
	limits config.Limits
	model  string
	logger *logging.Logger
	now    func() time.Time
	newRun func() string
}

// NewDriver creates an execution driver.
func NewDriver(store *state.Store, client agent.Client, limits config.Limits, model string, logger *logging.Logger) *Driver {
	return &Driver{
		store:  store,
		client: client,
		limits: limits,
		model:  model,
		logger: logger,
		now:    time.Now,
		newRun: uuid.NewString,
	}
}

// WithClock replaces the driver's clock. For tests.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

// Position self-reports have the shape "phase: <id>" / "step: <id>" on
// their own line of assistant output.
var (
	phasePattern = regexp.MustCompile(`(?mi)^\s*phase:\s*(\S+)\s*$`)
	stepPattern  = regexp.MustCompile(`(?mi)^\s*step:\s*(\S+)\s*$`)
)

// Run executes one task. The record must already exist in memory; Run
// transitions it to in_progress, persists a checkpoint per progress
// unit, and finishes by persisting completed or failed. On cancellation
// it performs one final persist and leaves the record in_progress so the
// next invocation can resume it.
func (d *Driver) Run(ctx context.Context, rec *state.Record, promptText string, cfg prompt.ExecutionConfig, workDir string) error {
	// Returning early (budget hit, persist failure) must also stop the
	// in-flight agent call.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	maxTurns := d.effectiveMaxTurns(cfg)
	base := rec.Execution

	if maxTurns > 0 && base.Turns >= maxTurns {
		return d.failBudget(rec, "turns", float64(maxTurns), float64(base.Turns))
	}
	if d.limits.MaxCostUSD > 0 && base.Cost.TotalCostUSD >= d.limits.MaxCostUSD {
		return d.failBudget(rec, "cost", d.limits.MaxCostUSD, base.Cost.TotalCostUSD)
	}

	rec.MarkInProgress(d.newRun())
	if err := d.store.Save(rec); err != nil {
		return err
	}

	opts := agent.Options{
		SystemPrompt: cfg.SystemPrompt,
		UsePreset:    cfg.UsePreset,
		Tools:        cfg.Tools,
		MaxTurns:     maxTurns - base.Turns,
		Model:        d.model,
		WorkDir:      workDir,
	}

	log := d.logger.With("feature", rec.Feature.ID).With("run", rec.Context.RunID)
	log.Info("starting agent call", "kind", string(rec.Task.Kind), "max_turns", opts.MaxTurns)

	chunks, err := d.client.Execute(callCtx, promptText, opts)
	if err != nil {
		callErr := &AgentCallFailedError{FeatureID: rec.Feature.ID, Reason: "could not start agent", Err: err}
		rec.MarkFailed(callErr.Error())
		if saveErr := d.store.Save(rec); saveErr != nil {
			return saveErr
		}
		return callErr
	}

	updates := 0
	sawResult := false

	for chunk := range chunks {
		switch chunk.Type {
		case agent.ChunkText:
			updates++
			if err := d.checkpoint(rec, chunk.Text, updates); err != nil {
				return err
			}

		case agent.ChunkToolUse:
			log.Debug("tool use", "tool", chunk.Tool.Name)

		case agent.ChunkResult:
			sawResult = true
			next := base
			next.Turns = base.Turns + chunk.Turns
			if chunk.Usage != nil {
				next.Cost.InputTokens = base.Cost.InputTokens + chunk.Usage.InputTokens
				next.Cost.OutputTokens = base.Cost.OutputTokens + chunk.Usage.OutputTokens
				next.Cost.TotalCostUSD = base.Cost.TotalCostUSD + chunk.Usage.TotalCostUSD
			}
			if err := rec.SetStats(next); err != nil {
				return err
			}

			if chunk.IsError {
				callErr := &AgentCallFailedError{FeatureID: rec.Feature.ID, Reason: chunk.Text}
				rec.MarkFailed(callErr.Error())
				if err := d.store.Save(rec); err != nil {
					return err
				}
				return callErr
			}
			// Strictly exceeded: finishing on exactly the last allowed
			// turn (or dollar) is a success.
			if maxTurns > 0 && next.Turns > maxTurns {
				return d.failBudget(rec, "turns", float64(maxTurns), float64(next.Turns))
			}
			if d.limits.MaxCostUSD > 0 && next.Cost.TotalCostUSD > d.limits.MaxCostUSD {
				return d.failBudget(rec, "cost", d.limits.MaxCostUSD, next.Cost.TotalCostUSD)
			}

			if rec.Task.Kind == task.KindPlanning {
				rec.Context.Plan = chunk.Text
			}
			rec.MarkCompleted(map[string]any{"summary": chunk.Text}, d.now())
			if err := d.store.Save(rec); err != nil {
				return err
			}
			log.Info("task completed", "turns", next.Turns, "cost_usd", fmt.Sprintf("%.2f", next.Cost.TotalCostUSD))
			return nil
		}
	}

	if ctx.Err() != nil {
		// Interrupted. Persist the last checkpoint and leave the record
		// in_progress; that state alone signals resumability.
		if err := d.store.Save(rec); err != nil {
			log.Error("final checkpoint persist failed", "error", err.Error())
		}
		log.Warn("agent call interrupted", "turns", rec.Execution.Turns)
		return ctx.Err()
	}
	if !sawResult {
		callErr := &AgentCallFailedError{FeatureID: rec.Feature.ID, Reason: "stream ended without a result"}
		rec.MarkFailed(callErr.Error())
		if err := d.store.Save(rec); err != nil {
			return err
		}
		return callErr
	}
	return nil
}

// checkpoint persists any phase/step position the agent self-reported
// in its output. Turn totals are not touched here: text chunks do not
// map one-to-one to turns, so only the terminal result's count is
// recorded as authoritative.
func (d *Driver) checkpoint(rec *state.Record, text string, seq int) error {
	if m := phasePattern.FindStringSubmatch(text); m != nil {
		rec.Status.CurrentPhase = m[1]
	}
	if m := stepPattern.FindStringSubmatch(text); m != nil {
		rec.Status.CurrentStep = m[1]
	}
	rec.Context.LastCheckpoint = &state.Checkpoint{
		Timestamp:   d.now(),
		Description: fmt.Sprintf("progress update %d", seq),
	}
	return d.store.Save(rec)
}

// effectiveMaxTurns combines the template's turn budget with the
// project-level cap. The lower positive value wins.
func (d *Driver) effectiveMaxTurns(cfg prompt.ExecutionConfig) int {
	max := cfg.MaxTurns
	if d.limits.MaxTurns > 0 && (max == 0 || d.limits.MaxTurns < max) {
		max = d.limits.MaxTurns
	}
	return max
}

func (d *Driver) failBudget(rec *state.Record, limit string, allowed, used float64) error {
	budgetErr := &BudgetExceededError{
		FeatureID: rec.Feature.ID,
		Limit:     limit,
		Allowed:   allowed,
		Used:      used,
	}
	rec.MarkFailed(budgetErr.Error())
	if err := d.store.Save(rec); err != nil {
		return err
	}
	return budgetErr
}
