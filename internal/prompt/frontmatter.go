// Package prompt loads prompt templates, resolves their execution
// configuration from YAML front matter, and renders prompt text.
//
// Templates come from two sources: the local project templates directory
// and a bundled set compiled into the binary. Local templates override
// bundled ones by name. The set is loaded once per registry and only
// re-read on an explicit Reload.
package prompt

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExecutionConfig is the resolved execution configuration for a task:
// how the system prompt is formed, which tools are enabled, and the turn
// budget.
type ExecutionConfig struct {
	// SystemPrompt is literal system prompt text. With UsePreset it is
	// appended to the preset; without it is used verbatim.
	SystemPrompt string
	// UsePreset selects the agent's predefined system prompt base.
	UsePreset bool
	// Tools lists enabled tool names. Empty means all tools enabled.
	Tools []string
	// MaxTurns caps agent turns for this task.
	MaxTurns int
}

// DefaultMaxTurns applies when front matter omits maxTurns. It is the
// only front matter field with a default; usePreset and tools must be
// stated explicitly.
const DefaultMaxTurns = 100

// TemplateNotFoundError reports a template name with neither a local nor
// a bundled definition.
type TemplateNotFoundError struct {
	Name string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found (no local or bundled definition)", e.Name)
}

// InvalidFrontMatterError reports front matter that fails to parse or
// omits a required field.
type InvalidFrontMatterError struct {
	Name   string
	Reason string
	Err    error
}

func (e *InvalidFrontMatterError) Error() string {
	return fmt.Sprintf("invalid front matter in template %q: %s", e.Name, e.Reason)
}

func (e *InvalidFrontMatterError) Unwrap() error { return e.Err }

// frontMatter mirrors the YAML front matter block. Pointer fields
// distinguish absent keys from zero values.
type frontMatter struct {
	SystemPrompt *string   `yaml:"systemPrompt"`
	UsePreset    *bool     `yaml:"usePreset"`
	Tools        *[]string `yaml:"tools"`
	MaxTurns     *int      `yaml:"maxTurns"`
}

const frontMatterDelimiter = "---"

// parseTemplate splits a template source into its execution config and
// body. The front matter block is required; a template without one has
// no declared tool set or system prompt mode and is rejected.
func parseTemplate(name, source string) (ExecutionConfig, string, error) {
	lines := strings.Split(source, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelimiter {
		return ExecutionConfig{}, "", &InvalidFrontMatterError{
			Name:   name,
			Reason: "missing front matter block",
		}
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterDelimiter {
			end = i
			break
		}
	}
	if end == -1 {
		return ExecutionConfig{}, "", &InvalidFrontMatterError{
			Name:   name,
			Reason: "unterminated front matter block",
		}
	}

	var fm frontMatter
	block := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return ExecutionConfig{}, "", &InvalidFrontMatterError{
			Name:   name,
			Reason: "unparseable YAML",
			Err:    err,
		}
	}

	if fm.UsePreset == nil {
		return ExecutionConfig{}, "", &InvalidFrontMatterError{Name: name, Reason: "usePreset is required"}
	}
	if fm.Tools == nil {
		return ExecutionConfig{}, "", &InvalidFrontMatterError{Name: name, Reason: "tools is required (use [] for all tools)"}
	}
	if !*fm.UsePreset && (fm.SystemPrompt == nil || *fm.SystemPrompt == "") {
		return ExecutionConfig{}, "", &InvalidFrontMatterError{
			Name:   name,
			Reason: "systemPrompt is required when usePreset is false",
		}
	}

	cfg := ExecutionConfig{
		UsePreset: *fm.UsePreset,
		Tools:     append([]string(nil), (*fm.Tools)...),
		MaxTurns:  DefaultMaxTurns,
	}
	if fm.SystemPrompt != nil {
		cfg.SystemPrompt = *fm.SystemPrompt
	}
	if fm.MaxTurns != nil {
		if *fm.MaxTurns <= 0 {
			return ExecutionConfig{}, "", &InvalidFrontMatterError{Name: name, Reason: "maxTurns must be positive"}
		}
		cfg.MaxTurns = *fm.MaxTurns
	}

	body := strings.Join(lines[end+1:], "\n")
	return cfg, body, nil
}
