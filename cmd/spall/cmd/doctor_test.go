package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWritableCreatesDirAndProbe(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	c := checkWritable("data-dir writable", dir)
	assert.True(t, c.OK)

	_, err := os.Stat(dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".write-probe"))
	assert.True(t, os.IsNotExist(err), "probe file should be cleaned up")
}

func TestCheckLockReportsNoDaemonWhenAbsent(t *testing.T) {
	c := checkLock(t.TempDir())
	assert.True(t, c.OK)
	assert.Contains(t, c.Message, "no daemon running")
}

func TestCheckModelCacheReportsMissingWhenEmpty(t *testing.T) {
	c := checkModelCache(t.TempDir())
	assert.False(t, c.OK)
}

func TestCheckModelCacheReportsPresentWhenFilesExist(t *testing.T) {
	cacheDir := t.TempDir()
	modelsDir := filepath.Join(cacheDir, "models")
	require.NoError(t, os.MkdirAll(modelsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "embed.gguf"), []byte("x"), 0644))

	c := checkModelCache(cacheDir)
	assert.True(t, c.OK)
}
