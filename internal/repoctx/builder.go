// Package repoctx scans a repository and produces the file context
// injected into prompt template rendering. It is an input producer only;
// nothing here mutates the repository.
package repoctx

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgedev/forge/internal/config"
	"github.com/forgedev/forge/internal/logging"
)

// File is one scanned repository file, ready for template injection.
type File struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// Builder scans a repository root according to scan configuration.
type Builder struct {
	root   string
	scan   config.Scan
	logger *logging.Logger
}

// NewBuilder creates a Builder for a repository root.
func NewBuilder(root string, scan config.Scan, logger *logging.Logger) *Builder {
	return &Builder{root: root, scan: scan, logger: logger}
}

// Scan walks the repository and returns included files in path order,
// honoring exclude patterns, the per-file size cap and the file count cap.
func (b *Builder) Scan() ([]File, error) {
	var files []File

	err := filepath.WalkDir(b.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(b.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if b.excluded(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(files) >= b.scan.MaxFiles {
			return filepath.SkipAll
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		if info.Size() > b.scan.MaxFileSize {
			b.logger.Debug("skipping oversized file", "path", rel, "size", info.Size())
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", rel, readErr)
		}
		if !isText(content) {
			b.logger.Debug("skipping binary file", "path", rel)
			return nil
		}

		files = append(files, File{
			Path:     rel,
			Content:  string(content),
			Language: DetectLanguage(rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan repository %s: %w", b.root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// excluded reports whether a relative path matches any exclude pattern.
// Directories match both directly and via their trailing-slash form so a
// pattern like "**/node_modules/**" prunes the whole subtree.
func (b *Builder) excluded(rel string, isDir bool) bool {
	for _, pattern := range b.scan.ExcludePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
				return true
			}
			// A directory whose contents a pattern targets is prunable
			// when the pattern starts inside it.
			if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
				return true
			}
		}
	}
	return false
}

// isText applies a cheap binary sniff: NUL bytes in the first 8KiB mean
// the file is not worth injecting into a prompt.
func isText(content []byte) bool {
	n := len(content)
	if n > 8192 {
		n = 8192
	}
	for _, b := range content[:n] {
		if b == 0 {
			return false
		}
	}
	return true
}

// TemplateVars converts scanned files to the generic map form consumed
// by prompt templates.
func TemplateVars(files []File) []map[string]any {
	vars := make([]map[string]any, len(files))
	for i, f := range files {
		vars[i] = map[string]any{
			"path":     f.Path,
			"content":  f.Content,
			"language": f.Language,
		}
	}
	return vars
}

var extLanguages = map[string]string{
	".go":    "go",
	".rs":    "rust",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".sh":    "bash",
	".sql":   "sql",
	".html":  "html",
	".css":   "css",
	".proto": "protobuf",
}

// DetectLanguage maps a file path to a language tag for fenced code
// blocks. Unknown extensions yield an empty tag.
func DetectLanguage(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
