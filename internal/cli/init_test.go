package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgedev/forge/internal/config"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(originalDir) })
	require.NoError(t, os.Chdir(tmpDir))

	// TempDir may be a symlink on some platforms; use the resolved path
	// so comparisons against Getwd hold.
	resolved, err := filepath.EvalSymlinks(tmpDir)
	require.NoError(t, err)
	return resolved
}

func assertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err, "expected directory %s", path)
	assert.True(t, info.IsDir())
}

func TestInitCommand(t *testing.T) {
	tmpDir := chdirTemp(t)
	initForce = false

	require.NoError(t, runInit(initCmd, nil))

	forgeDir := filepath.Join(tmpDir, config.Dir)

	t.Run("creates directory structure", func(t *testing.T) {
		assertDirExists(t, forgeDir)
		assertDirExists(t, filepath.Join(forgeDir, "templates"))
		assertDirExists(t, filepath.Join(forgeDir, "features"))
	})

	t.Run("creates config.yaml with defaults", func(t *testing.T) {
		cfg, err := config.Load(tmpDir)
		require.NoError(t, err)

		assert.Equal(t, filepath.Base(tmpDir), cfg.Project.Name)
		assert.Equal(t, config.DefaultMaxTurns, cfg.Limits.MaxTurns)
		assert.Equal(t, config.DefaultMaxCostUSD, cfg.Limits.MaxCostUSD)
		assert.Equal(t, config.DefaultModel, cfg.Agent.Model)
		assert.True(t, cfg.Prompts.UseBundled)
	})

	t.Run("excludes feature state from version control", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(forgeDir, "features", ".gitignore"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "*")
	})

	t.Run("writes templates README", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(forgeDir, "templates", "README.md"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "usePreset")
	})
}

func TestInitCommandRefusesReinit(t *testing.T) {
	chdirTemp(t)
	initForce = false

	require.NoError(t, runInit(initCmd, nil))

	err := runInit(initCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")
}

func TestInitCommandForce(t *testing.T) {
	tmpDir := chdirTemp(t)
	initForce = false
	require.NoError(t, runInit(initCmd, nil))

	// Mangle the config, then reinit with --force.
	require.NoError(t, os.WriteFile(config.Path(tmpDir), []byte("version: broken"), 0o644))
	initForce = true
	t.Cleanup(func() { initForce = false })

	require.NoError(t, runInit(initCmd, nil))

	cfg, err := config.Load(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultVersion, cfg.Version)
}
