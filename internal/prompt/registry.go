package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nikolalohinski/gonja"

	"github.com/forgedev/forge/internal/task"
)

//go:embed templates/*.md
var bundledFS embed.FS

// Source identifies where a template definition came from.
type Source string

const (
	// SourceBundled marks a template compiled into the binary.
	SourceBundled Source = "bundled"
	// SourceLocal marks a template from the project templates directory.
	SourceLocal Source = "local"
)

// Template is a loaded prompt template: its resolved execution config
// and its renderable body.
type Template struct {
	Name   string
	Source Source
	Config ExecutionConfig
	Body   string
}

// Registry holds the template set for one invocation.
type Registry struct {
	localDir   string
	useBundled bool
	templates  map[string]*Template
}

// NewRegistry loads templates from the bundled set (when useBundled) and
// the local directory, local overriding bundled by name. The local
// directory may be absent; the bundled set is then the whole universe.
func NewRegistry(localDir string, useBundled bool) (*Registry, error) {
	r := &Registry{localDir: localDir, useBundled: useBundled}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads all template sources, replacing the loaded set.
func (r *Registry) Reload() error {
	templates := make(map[string]*Template)

	if r.useBundled {
		entries, err := bundledFS.ReadDir("templates")
		if err != nil {
			return fmt.Errorf("failed to read bundled templates: %w", err)
		}
		for _, entry := range entries {
			name := strings.TrimSuffix(entry.Name(), ".md")
			data, err := bundledFS.ReadFile("templates/" + entry.Name())
			if err != nil {
				return fmt.Errorf("failed to read bundled template %s: %w", name, err)
			}
			tpl, err := newTemplate(name, SourceBundled, string(data))
			if err != nil {
				return err
			}
			templates[name] = tpl
		}
	}

	if r.localDir != "" {
		entries, err := os.ReadDir(r.localDir)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to read templates directory %s: %w", r.localDir, err)
		}
		for _, entry := range entries {
			// README.md documents the directory, it is not a template.
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") || entry.Name() == "README.md" {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ".md")
			data, err := os.ReadFile(filepath.Join(r.localDir, entry.Name()))
			if err != nil {
				return fmt.Errorf("failed to read template %s: %w", name, err)
			}
			tpl, err := newTemplate(name, SourceLocal, string(data))
			if err != nil {
				return err
			}
			templates[name] = tpl
		}
	}

	r.templates = templates
	return nil
}

func newTemplate(name string, source Source, content string) (*Template, error) {
	cfg, body, err := parseTemplate(name, content)
	if err != nil {
		return nil, err
	}
	return &Template{Name: name, Source: source, Config: cfg, Body: body}, nil
}

// Get returns a loaded template by name.
func (r *Registry) Get(name string) (*Template, error) {
	tpl, ok := r.templates[name]
	if !ok {
		return nil, &TemplateNotFoundError{Name: name}
	}
	return tpl, nil
}

// Has reports whether a template is loaded.
func (r *Registry) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Names returns all loaded template names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a task kind to its execution configuration. It is a pure
// function of the kind and the loaded template set.
func (r *Registry) Resolve(kind task.Kind) (ExecutionConfig, error) {
	tpl, err := r.Get(kind.TemplateName())
	if err != nil {
		return ExecutionConfig{}, err
	}
	return tpl.Config, nil
}

// ResolveResume resolves the execution configuration for resuming an
// interrupted task. This is the one context-sensitive deviation from the
// static kind mapping: the resume template's own front matter is dynamic
// and never shapes the prompt; the configuration comes from the ORIGINAL
// interrupted task's kind, and its use_preset/tools values are injected
// into the resume template's render variables by the caller.
func (r *Registry) ResolveResume(original task.Kind) (ExecutionConfig, error) {
	if !r.Has(task.ResumeTemplate) {
		return ExecutionConfig{}, &TemplateNotFoundError{Name: task.ResumeTemplate}
	}
	return r.Resolve(original)
}

// Render renders a template body with the given variables.
func (r *Registry) Render(name string, vars map[string]any) (string, error) {
	tpl, err := r.Get(name)
	if err != nil {
		return "", err
	}

	compiled, err := gonja.FromString(tpl.Body)
	if err != nil {
		return "", fmt.Errorf("failed to compile template %q: %w", name, err)
	}

	out, err := compiled.Execute(gonja.Context(vars))
	if err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return out, nil
}
