package main

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/loom/internal/fixes"
	"github.com/thruflo/loom/internal/logging"
	"github.com/thruflo/loom/internal/testutil"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"LLVM_ROOT", "LOOM_ROOT", "DEFENS_ROOT", "LOOM_CONTROL_PORT"} {
		t.Setenv(env, "")
	}
}

func TestResolve_Defaults(t *testing.T) {
	clearEnv(t)

	opts, err := parseFlags([]string{"--config", t.TempDir()})
	require.NoError(t, err)

	ctl, level, err := opts.resolve()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ctl.Host)
	assert.Equal(t, 1221, ctl.Port)
	assert.Empty(t, ctl.Identity)
	assert.Equal(t, logging.LevelInfo, level)
}

func TestResolve_FlagsOverrideConfigAndEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOM_CONTROL_PORT", "1300")

	dir := testutil.SetupTestDir(t)
	testutil.WriteConfig(t, dir, "control:\n  host: 0.0.0.0\n  identity: from-config\n")

	opts, err := parseFlags([]string{"--config", dir, "--identity", "/srv/httpd.loom 0", "--log-level", "debug"})
	require.NoError(t, err)

	ctl, level, err := opts.resolve()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", ctl.Host, "config value kept without a flag")
	assert.Equal(t, 1300, ctl.Port, "environment overrides config")
	assert.Equal(t, "/srv/httpd.loom 0", ctl.Identity, "flag overrides config")
	assert.Equal(t, logging.LevelDebug, level)

	opts, err = parseFlags([]string{"--config", dir, "--port", "0"})
	require.NoError(t, err)
	ctl, _, err = opts.resolve()
	require.NoError(t, err)
	assert.Equal(t, 0, ctl.Port)
}

func TestResolve_Invalid(t *testing.T) {
	clearEnv(t)

	opts, err := parseFlags([]string{"--config", t.TempDir(), "--port", "70000"})
	require.NoError(t, err)
	_, _, err = opts.resolve()
	assert.Error(t, err)

	opts, err = parseFlags([]string{"--config", t.TempDir(), "--log-level", "loud"})
	require.NoError(t, err)
	_, _, err = opts.resolve()
	assert.Error(t, err)

	_, err = parseFlags([]string{"extra"})
	assert.Error(t, err)
}

func TestLoggingApplier(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf)
	logger.SetOutput(log.New(&buf, "", 0))
	logger.SetLevel(logging.LevelInfo)

	set := fixes.NewSet(&loggingApplier{logger: logger})
	_, err := set.Add(fixes.Fix{ID: 7, Extension: "hotfix_a"})
	require.NoError(t, err)
	_, err = set.Remove(7)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "INFO: fix applied | extension=hotfix_a id=7")
	assert.Contains(t, buf.String(), "INFO: fix reverted | extension=hotfix_a id=7")
}
