// Package config loads and validates the .forge/ project configuration.
//
// All paths derived from the configuration are anchored at an explicit
// project root passed by the caller, never at the process working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the name of the project metadata directory.
const Dir = ".forge"

// Default values applied to missing config fields.
const (
	DefaultVersion        = "1.0"
	DefaultModel          = "claude-sonnet-4-5"
	DefaultMaxTokens      = 8192
	DefaultTimeoutSeconds = 600
	DefaultMaxTurns       = 100
	DefaultMaxCostUSD     = 20.0
	DefaultMaxFileSize    = 256 * 1024
	DefaultMaxFiles       = 50
	DefaultBranchPrefix   = "feature/"
	DefaultLogLevel       = "warn"
)

// DefaultExcludePatterns are glob patterns skipped during repository scans.
var DefaultExcludePatterns = []string{
	"**/.git/**",
	"**/.forge/**",
	"**/.trees/**",
	"**/node_modules/**",
	"**/target/**",
	"**/vendor/**",
	"**/*.lock",
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Version: DefaultVersion,
		Project: Project{
			Repository: Repository{MainBranch: "main"},
		},
		Agent: Agent{
			Model:          DefaultModel,
			MaxTokens:      DefaultMaxTokens,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Prompts: Prompts{
			Directory:  filepath.Join(Dir, "templates"),
			UseBundled: true,
		},
		Scan: Scan{
			ExcludePatterns: append([]string(nil), DefaultExcludePatterns...),
			MaxFileSize:     DefaultMaxFileSize,
			MaxFiles:        DefaultMaxFiles,
		},
		Worktree: Worktree{
			Directory:    ".trees",
			BranchPrefix: DefaultBranchPrefix,
		},
		Limits: Limits{
			MaxTurns:   DefaultMaxTurns,
			MaxCostUSD: DefaultMaxCostUSD,
		},
		Logging: Logging{Level: DefaultLogLevel},
	}
}

// ValidationError describes an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Path returns the config file path for a project root.
func Path(root string) string {
	return filepath.Join(root, Dir, "config.yaml")
}

// IsProject reports whether root contains a .forge directory.
func IsProject(root string) bool {
	info, err := os.Stat(filepath.Join(root, Dir))
	return err == nil && info.IsDir()
}

// Load reads and parses .forge/config.yaml under the given project root.
// Missing fields receive defaults; a missing file is an error because it
// means the project was never initialized.
func Load(root string) (*Config, error) {
	path := Path(root)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("not a forge project: %s (run 'forge init' first)", root)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that config values are usable.
func Validate(cfg *Config) error {
	if cfg.Project.Repository.MainBranch == "" {
		return ValidationError{Field: "project.repository.main_branch", Message: "required field is empty"}
	}
	if cfg.Prompts.Directory == "" {
		return ValidationError{Field: "prompts.directory", Message: "required field is empty"}
	}
	if cfg.Limits.MaxTurns <= 0 {
		return ValidationError{Field: "limits.max_turns", Message: "must be positive"}
	}
	if cfg.Limits.MaxCostUSD < 0 {
		return ValidationError{Field: "limits.max_cost_usd", Message: "must not be negative"}
	}
	if cfg.Scan.MaxFileSize <= 0 {
		return ValidationError{Field: "scan.max_file_size", Message: "must be positive"}
	}
	if cfg.Scan.MaxFiles <= 0 {
		return ValidationError{Field: "scan.max_files", Message: "must be positive"}
	}
	if cfg.Agent.TimeoutSeconds <= 0 {
		return ValidationError{Field: "agent.timeout_seconds", Message: "must be positive"}
	}
	return nil
}

// TemplatesDir returns the absolute local templates directory for a root.
func (c *Config) TemplatesDir(root string) string {
	if filepath.IsAbs(c.Prompts.Directory) {
		return c.Prompts.Directory
	}
	return filepath.Join(root, c.Prompts.Directory)
}

// FeaturesDir returns the directory holding per-feature state records.
func FeaturesDir(root string) string {
	return filepath.Join(root, Dir, "features")
}
