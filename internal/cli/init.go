package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/forgedev/forge/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the .forge/ directory structure",
	Long: `Creates the .forge/ directory with default configuration and the
layout forge expects:

  - config.yaml with agent, scan and budget settings
  - templates/ for local prompt template overrides
  - features/ for per-feature task state (excluded from version control)`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing configuration")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	root, err := projectRoot("")
	if err != nil {
		return err
	}

	if config.IsProject(root) && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite config.yaml)", config.Dir)
	}

	dirs := []string{
		filepath.Join(root, config.Dir),
		filepath.Join(root, config.Dir, "templates"),
		config.FeaturesDir(root),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Project.Name = filepath.Base(root)
	if url := gitRemoteURL(root); url != "" {
		cfg.Project.Repository.URL = url
	}
	if branch := gitDefaultBranch(root); branch != "" {
		cfg.Project.Repository.MainBranch = branch
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(config.Path(root), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config.yaml: %w", err)
	}

	// Task state is local by convention.
	gitignore := filepath.Join(config.FeaturesDir(root), ".gitignore")
	if err := os.WriteFile(gitignore, []byte("*\n!.gitignore\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write features .gitignore: %w", err)
	}

	readme := filepath.Join(root, config.Dir, "templates", "README.md")
	if err := os.WriteFile(readme, []byte(templatesReadme), 0o644); err != nil {
		return fmt.Errorf("failed to write templates README: %w", err)
	}

	fmt.Printf("Initialized %s/ for project %q\n", config.Dir, cfg.Project.Name)
	return nil
}

const templatesReadme = `# Prompt templates

Markdown files placed here override the bundled templates by base name
(plan.md, implement.md, verify.md, resume.md). Each template needs YAML
front matter declaring usePreset and tools; maxTurns is optional.

Run ` + "`forge prompts`" + ` to see the active template set.
`

// gitRemoteURL returns the origin remote URL, or "" when root is not a
// git repository or has no origin.
func gitRemoteURL(root string) string {
	out, err := exec.Command("git", "-C", root, "remote", "get-url", "origin").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// gitDefaultBranch returns the current branch name, or "" when unknown.
func gitDefaultBranch(root string) string {
	out, err := exec.Command("git", "-C", root, "symbolic-ref", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
