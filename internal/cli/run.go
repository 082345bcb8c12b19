package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgedev/forge/internal/agent"
	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/engine"
	"github.com/forgedev/forge/internal/prompt"
	"github.com/forgedev/forge/internal/repoctx"
	"github.com/forgedev/forge/internal/state"
	"github.com/forgedev/forge/internal/task"
)

var (
	runFeature     string
	runKind        string
	runDescription string
	runResume      bool
	runFresh       bool
	runRetry       bool
)

// runClient can be overridden in tests.
var runClient agent.Client

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a feature task",
	Long: `Runs one planning, implementation or verification task for a feature.

State is persisted per feature under .forge/features/. A run interrupted
by Ctrl-C or a crash leaves a resumable record; pass --resume to continue
it, --retry to resume a failed run, or --fresh to discard prior state and
start over.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFeature, "feature", "F", "", "feature name (required)")
	runCmd.Flags().StringVarP(&runKind, "kind", "k", "implementation", "task kind: planning, implementation or verification")
	runCmd.Flags().StringVarP(&runDescription, "description", "d", "", "feature description")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume an in-progress task")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "discard any existing record and start over")
	runCmd.Flags().BoolVar(&runRetry, "retry", false, "resume a previously failed task")
	runCmd.MarkFlagRequired("feature")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	root, err := projectRoot("")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	kind, err := task.ParseKind(runKind)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	store := state.NewStore(config.FeaturesDir(root))
	registry, err := prompt.NewRegistry(cfg.TemplatesDir(root), cfg.Prompts.UseBundled)
	if err != nil {
		return err
	}

	client := runClient
	if client == nil {
		client = agent.NewCLIClient(logger)
	}

	driver := engine.NewDriver(store, client, cfg.Limits, cfg.Agent.Model, logger)
	runner := engine.NewRunner(store, registry, driver, logger)

	files, err := repoctx.NewBuilder(root, cfg.Scan, logger).Scan()
	if err != nil {
		return err
	}

	// Ctrl-C cancels the agent call; the driver persists a final
	// checkpoint before exiting so the run stays resumable.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := runner.Run(ctx, engine.RunRequest{
		FeatureName: runFeature,
		Kind:        kind,
		Description: runDescription,
		Resume:      runResume,
		Retry:       runRetry,
		Fresh:       runFresh,
		WorkDir:     root,
		Worktree: state.Worktree{
			Path:   filepath.Join(root, cfg.Worktree.Directory, runFeature),
			Branch: cfg.Worktree.BranchPrefix + runFeature,
		},
		Vars: map[string]any{
			"repo_path":   root,
			"main_branch": cfg.Project.Repository.MainBranch,
			"files":       repoctx.TemplateVars(files),
		},
	})
	if err != nil {
		if errors.Is(err, state.ErrLockHeld) {
			return fmt.Errorf("another forge run is active for this feature: %w", err)
		}
		return err
	}

	printOutcome(out)
	return nil
}

func printOutcome(out *engine.RunOutcome) {
	rec := out.Record
	switch out.Decision {
	case engine.ReportCompletion:
		fmt.Printf("Feature %s (%s) already completed at %s.\n",
			rec.Feature.Name, rec.Feature.ID, rec.Timestamps.CompletedAt.Format("2006-01-02 15:04"))
		printResult(out.Result)

	case engine.AskRetryOrFresh:
		fmt.Printf("Feature %s (%s) previously failed: %s\n",
			rec.Feature.Name, rec.Feature.ID, rec.Status.Message)
		fmt.Println("Pass --retry to resume the failed run, or --fresh to start over.")

	default:
		fmt.Printf("Feature %s (%s): %s after %d turns ($%.2f).\n",
			rec.Feature.Name, rec.Feature.ID, rec.Status.State,
			rec.Execution.Turns, rec.Execution.Cost.TotalCostUSD)
		printResult(out.Result)
	}
}

func printResult(result map[string]any) {
	if len(result) == 0 {
		return
	}
	keys := make([]string, 0, len(result))
	for k := range result {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, result[k])
	}
}
