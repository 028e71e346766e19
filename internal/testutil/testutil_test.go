package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestDir(t *testing.T) {
	dir := SetupTestDir(t)

	info, err := os.Stat(filepath.Join(dir, ".loom"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteAndReadTestFile(t *testing.T) {
	dir := t.TempDir()

	path := WriteTestFile(t, dir, "nested/dir/prog.bc", SampleBitcode)

	assert.Equal(t, filepath.Join(dir, "nested/dir/prog.bc"), path)
	assert.Equal(t, SampleBitcode, ReadTestFile(t, path))
	AssertFileContent(t, path, SampleBitcode)
}

func TestWriteConfig(t *testing.T) {
	dir := SetupTestDir(t)

	path := WriteConfig(t, dir, "control:\n  port: 1229\n")

	assert.Equal(t, filepath.Join(dir, ".loom", "config.yaml"), path)
	AssertFileContent(t, path, []byte("control:\n  port: 1229\n"))
}

func TestWriteBitcode(t *testing.T) {
	path := WriteBitcode(t, "mysqld.bc")

	assert.Equal(t, "mysqld.bc", filepath.Base(path))
	assert.Equal(t, []byte("BC\xc0\xde"), ReadTestFile(t, path)[:4])
}

func TestAssertNoFileAndSameBytes(t *testing.T) {
	dir := t.TempDir()
	a := WriteTestFile(t, dir, "a", []byte("same"))
	b := WriteTestFile(t, dir, "b", []byte("same"))

	AssertSameBytes(t, a, b)
	AssertNoFile(t, PathIn(dir, "missing"))
}

func TestSampleCommands(t *testing.T) {
	assert.Equal(t, "get_name", SampleCommands[0])
	assert.Len(t, SampleCommands, 6)
}
