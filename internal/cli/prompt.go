package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/prompt"
	"github.com/forgedev/forge/internal/repoctx"
	"github.com/forgedev/forge/internal/task"
)

var (
	promptFeature     string
	promptDescription string
	promptNoFiles     bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt <kind>",
	Short: "Render a task prompt without executing it",
	Long: `Renders the prompt that 'forge run' would send for a task kind,
using the same template resolution and repository context. Useful for
inspecting templates and local overrides.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrompt,
}

func init() {
	promptCmd.Flags().StringVarP(&promptFeature, "feature", "F", "example-feature", "feature name")
	promptCmd.Flags().StringVarP(&promptDescription, "description", "d", "", "feature description")
	promptCmd.Flags().BoolVar(&promptNoFiles, "no-files", false, "skip repository file context")
	rootCmd.AddCommand(promptCmd)
}

func runPrompt(cmd *cobra.Command, args []string) error {
	root, err := projectRoot("")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	kind, err := task.ParseKind(args[0])
	if err != nil {
		return err
	}
	registry, err := prompt.NewRegistry(cfg.TemplatesDir(root), cfg.Prompts.UseBundled)
	if err != nil {
		return err
	}

	vars := map[string]any{
		"feature_name":        promptFeature,
		"feature_id":          task.FeatureID(promptFeature),
		"feature_description": promptDescription,
		"repo_path":           root,
		"main_branch":         cfg.Project.Repository.MainBranch,
	}
	if !promptNoFiles {
		files, err := repoctx.NewBuilder(root, cfg.Scan, newLogger(cfg)).Scan()
		if err != nil {
			return err
		}
		vars["files"] = repoctx.TemplateVars(files)
	}

	text, err := registry.Render(kind.TemplateName(), vars)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}
