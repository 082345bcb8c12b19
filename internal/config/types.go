package config

// Project holds project identity metadata.
type Project struct {
	Name       string     `yaml:"name"`
	Repository Repository `yaml:"repository"`
}

// Repository identifies the repository a project operates on.
type Repository struct {
	URL        string `yaml:"url"`
	MainBranch string `yaml:"main_branch"`
}

// Agent holds defaults for the agent call service.
type Agent struct {
	Model          string `yaml:"model"`
	MaxTokens      int    `yaml:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Prompts configures template resolution.
type Prompts struct {
	// Directory is the local templates directory, relative to the
	// project root. Local templates override bundled ones by name.
	Directory string `yaml:"directory"`
	// UseBundled enables the bundled template set as a fallback.
	UseBundled bool `yaml:"use_bundled"`
}

// Scan configures repository context gathering.
type Scan struct {
	ExcludePatterns []string `yaml:"exclude_patterns"`
	MaxFileSize     int64    `yaml:"max_file_size"`
	MaxFiles        int      `yaml:"max_files"`
}

// Worktree configures where feature worktrees live.
type Worktree struct {
	Directory    string `yaml:"directory"`
	BranchPrefix string `yaml:"branch_prefix"`
}

// Limits defines execution budgets for a single task run.
type Limits struct {
	// MaxTurns caps agent turns per run. A template may set a lower cap
	// through its front matter.
	MaxTurns int `yaml:"max_turns"`
	// MaxCostUSD caps total spend per run. Zero means no cost cap.
	MaxCostUSD float64 `yaml:"max_cost_usd"`
}

// Logging configures log output.
type Logging struct {
	Level string `yaml:"level"`
}

// Config represents the .forge/config.yaml file.
type Config struct {
	Version  string   `yaml:"version"`
	Project  Project  `yaml:"project"`
	Agent    Agent    `yaml:"agent"`
	Prompts  Prompts  `yaml:"prompts"`
	Scan     Scan     `yaml:"scan"`
	Worktree Worktree `yaml:"worktree"`
	Limits   Limits   `yaml:"limits"`
	Logging  Logging  `yaml:"logging"`
}
