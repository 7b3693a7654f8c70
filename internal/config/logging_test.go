package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, err := SetupLogFile(dir, 5)
	require.NoError(t, err, "missing directories are created")
	defer f.Close()

	assert.Contains(t, filepath.Base(f.Name()), "cubby-")

	_, err = f.WriteString("hello\n")
	assert.NoError(t, err)
}

func TestSetupLogFilePrunesOldest(t *testing.T) {
	dir := t.TempDir()
	old := []string{
		"cubby-2026-01-01T00-00-00.log",
		"cubby-2026-01-02T00-00-00.log",
		"cubby-2026-01-03T00-00-00.log",
	}
	for _, name := range old {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	f, err := SetupLogFile(dir, 2)
	require.NoError(t, err)
	defer f.Close()

	files, err := filepath.Glob(filepath.Join(dir, "cubby-*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 2, "only the most recent files survive")
	assert.NotContains(t, files, filepath.Join(dir, old[0]))
	assert.Contains(t, files, f.Name(), "the fresh file is never pruned")
}
