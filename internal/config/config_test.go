package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindWorkspaceDirWalksUpToSpallDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".spall"), 0755))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	dir, ok := FindWorkspaceDir(nested)
	require.True(t, ok)
	assert.Equal(t, root, dir)
}

func TestFindWorkspaceDirReturnsFalseWhenAbsent(t *testing.T) {
	dir, ok := FindWorkspaceDir(t.TempDir())
	assert.False(t, ok)
	assert.Empty(t, dir)
}

func TestLoadMissingFileReturnsZeroConfig(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Workspace.Name)
	assert.Empty(t, cfg.Scope.Read)
}

func TestLoadRichScopeShape(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, `{
		"workspace": {"name": "me"},
		"scope": {"read": ["notes", "docs"], "write": "notes"}
	}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "me", cfg.Workspace.Name)
	assert.Equal(t, []string{"notes", "docs"}, cfg.Scope.Read)
	assert.Equal(t, "notes", cfg.Scope.Write)
}

func TestLoadLegacyIncludeShapeMapsToScopeRead(t *testing.T) {
	root := t.TempDir()
	writeConfigFile(t, root, `{
		"workspace": {"name": "me"},
		"include": ["notes", "journal"]
	}`)

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes", "journal"}, cfg.Scope.Read)
	assert.Equal(t, defaultWriteScope, cfg.Scope.Write)
}

func TestSaveWritesRicherShapeNotInclude(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		Workspace: WorkspaceRef{Name: "me"},
		Scope:     Scope{Read: []string{"notes"}, Write: "notes"},
	}
	require.NoError(t, Save(root, cfg))

	raw, err := os.ReadFile(filepath.Join(root, configDirName, configFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"scope"`)
	assert.NotContains(t, string(raw), `"include"`)

	reloaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, cfg.Scope, reloaded.Scope)
}

func TestDirsUsesEnvOverrides(t *testing.T) {
	root := t.TempDir()
	t.Setenv("SPALL_DATA_DIR", "/tmp/custom-data")
	t.Setenv("SPALL_CACHE_DIR", "/tmp/custom-cache")

	dataDir, cacheDir := Dirs(root)
	assert.Equal(t, "/tmp/custom-data", dataDir)
	assert.Equal(t, "/tmp/custom-cache", cacheDir)
}

func TestDirsDefaultsToWorkspaceRelativePaths(t *testing.T) {
	root := t.TempDir()
	dataDir, cacheDir := Dirs(root)
	assert.Equal(t, filepath.Join(root, ".spall", "data"), dataDir)
	assert.Equal(t, filepath.Join(root, ".spall", "cache"), cacheDir)
}

func writeConfigFile(t *testing.T, root, content string) {
	t.Helper()
	dir := filepath.Join(root, configDirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, configFileName), []byte(content), 0644))
}
