package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// SetupTestDir creates a temp directory containing an empty .loom
// directory and returns its path.
func SetupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".loom"), 0o755))
	return dir
}

// WriteTestFile writes content to basePath/relativePath, creating parent
// directories, and returns the full path.
func WriteTestFile(t *testing.T, basePath, relativePath string, content []byte) string {
	t.Helper()
	full := filepath.Join(basePath, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, content, 0o644))
	return full
}

// WriteConfig writes content as .loom/config.yaml under basePath.
func WriteConfig(t *testing.T, basePath, content string) string {
	t.Helper()
	return WriteTestFile(t, basePath, filepath.Join(".loom", "config.yaml"), []byte(content))
}

// ReadTestFile returns the content of path or fails the test.
func ReadTestFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
