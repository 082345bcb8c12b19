package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/state"
	"github.com/forgedev/forge/internal/task"
)

// RecordReader abstracts state storage for testability.
type RecordReader interface {
	List() ([]*state.Record, []*state.CorruptStateError, error)
	Load(featureID string) (*state.Record, bool, error)
}

// statusStore is the record reader used by the status command. It can be
// overridden in tests.
var statusStore RecordReader

var statusCmd = &cobra.Command{
	Use:   "status [feature]",
	Short: "Show feature task status",
	Long: `Shows persisted task state.

Without arguments, lists all features with their state and progress.
With a feature name, shows the full record for that feature.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	store := statusStore
	if store == nil {
		root, err := projectRoot("")
		if err != nil {
			return err
		}
		if _, err := config.Load(root); err != nil {
			return err
		}
		store = state.NewStore(config.FeaturesDir(root))
	}

	if len(args) == 0 {
		return listFeatures(store)
	}
	return showFeature(store, args[0])
}

func listFeatures(store RecordReader) error {
	records, corrupt, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list features: %w", err)
	}
	if len(records) == 0 && len(corrupt) == 0 {
		fmt.Println("No feature tasks found.")
		return nil
	}

	nameWidth := len("FEATURE")
	for _, r := range records {
		if len(r.Feature.Name) > nameWidth {
			nameWidth = len(r.Feature.Name)
		}
	}

	fmt.Printf("%-*s  %-4s  %-14s  %-12s  %-6s  %s\n", nameWidth, "FEATURE", "ID", "KIND", "STATE", "TURNS", "COST")
	fmt.Printf("%s  %s  %s  %s  %s  %s\n",
		strings.Repeat("-", nameWidth), "----", strings.Repeat("-", 14),
		strings.Repeat("-", 12), "-----", "-----")
	for _, r := range records {
		fmt.Printf("%-*s  %-4s  %-14s  %-12s  %-6d  $%.2f\n",
			nameWidth, r.Feature.Name, r.Feature.ID, r.Task.Kind,
			r.Status.State, r.Execution.Turns, r.Execution.Cost.TotalCostUSD)
	}
	for _, c := range corrupt {
		fmt.Printf("! feature %s has a corrupt record (%s): %s\n", c.FeatureID, c.Path, c.Reason)
	}
	return nil
}

func showFeature(store RecordReader, featureName string) error {
	featureID := task.FeatureID(featureName)
	rec, found, err := store.Load(featureID)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No task record for feature %q (%s).\n", featureName, featureID)
		return nil
	}

	fmt.Printf("Feature:   %s (%s)\n", rec.Feature.Name, rec.Feature.ID)
	if rec.Feature.Description != "" {
		fmt.Printf("About:     %s\n", rec.Feature.Description)
	}
	fmt.Printf("Kind:      %s\n", rec.Task.Kind)
	fmt.Printf("State:     %s\n", rec.Status.State)
	if rec.Status.CurrentPhase != "" {
		fmt.Printf("Position:  phase=%s step=%s\n", rec.Status.CurrentPhase, rec.Status.CurrentStep)
	}
	if rec.Status.Message != "" {
		fmt.Printf("Message:   %s\n", rec.Status.Message)
	}
	fmt.Printf("Turns:     %d\n", rec.Execution.Turns)
	fmt.Printf("Cost:      $%.2f (%d in / %d out tokens)\n",
		rec.Execution.Cost.TotalCostUSD,
		rec.Execution.Cost.InputTokens, rec.Execution.Cost.OutputTokens)
	if rec.Context.Worktree.Path != "" {
		fmt.Printf("Worktree:  %s (%s)\n", rec.Context.Worktree.Path, rec.Context.Worktree.Branch)
	}
	if cp := rec.Context.LastCheckpoint; cp != nil {
		fmt.Printf("Last checkpoint: %s (%s)\n", cp.Description, cp.Timestamp.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("Created:   %s\n", rec.Timestamps.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:   %s\n", rec.Timestamps.UpdatedAt.Format("2006-01-02 15:04:05"))
	if rec.Timestamps.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", rec.Timestamps.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if len(rec.Result) > 0 {
		fmt.Println("Result:")
		printResult(rec.Result)
	}
	return nil
}
