package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/prompt"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the active prompt templates",
	Long: `Lists the prompt template set in effect for this project: bundled
templates plus any local overrides from the templates directory, with
the execution configuration each one declares.`,
	RunE: runPrompts,
}

func init() {
	rootCmd.AddCommand(promptsCmd)
}

func runPrompts(cmd *cobra.Command, args []string) error {
	root, err := projectRoot("")
	if err != nil {
		return err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	registry, err := prompt.NewRegistry(cfg.TemplatesDir(root), cfg.Prompts.UseBundled)
	if err != nil {
		return err
	}

	fmt.Printf("%-12s  %-8s  %-10s  %-9s  %s\n", "TEMPLATE", "SOURCE", "PRESET", "MAX_TURNS", "TOOLS")
	for _, name := range registry.Names() {
		tpl, err := registry.Get(name)
		if err != nil {
			return err
		}
		tools := "all"
		if len(tpl.Config.Tools) > 0 {
			tools = strings.Join(tpl.Config.Tools, ",")
		}
		fmt.Printf("%-12s  %-8s  %-10t  %-9d  %s\n",
			tpl.Name, tpl.Source, tpl.Config.UsePreset, tpl.Config.MaxTurns, tools)
	}
	return nil
}
