// Package cli wires the forge commands. Commands stay thin: they load
// configuration, build the engine components, and print results.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "AI-assisted development task orchestrator",
	Long: `Forge runs planning, implementation and verification tasks against a
repository using an external coding agent, persisting task state so an
interrupted run can resume exactly where it stopped.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("forge version {{.Version}}\n")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// projectRoot resolves the project root for a command. An empty override
// means the current working directory.
func projectRoot(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return cwd, nil
}

// newLogger builds the command logger from config.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(os.Stderr, logging.ParseLevel(cfg.Logging.Level))
}
