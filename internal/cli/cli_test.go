package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgepipe/forgepipe/internal/testutil"
)

func TestParse_FlagsAndPositional(t *testing.T) {
	t.Run("definitions flag", func(t *testing.T) {
		cfg, exit, err := Parse([]string{"-definitions", "/tmp/pipes"}, &testutil.SafeBuffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "/tmp/pipes", cfg.DefinitionsPath)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("positional path", func(t *testing.T) {
		cfg, exit, err := Parse([]string{"/tmp/other"}, &testutil.SafeBuffer{})
		require.NoError(t, err)
		require.False(t, exit)
		assert.Equal(t, "/tmp/other", cfg.DefinitionsPath)
	})

	t.Run("flag wins over positional", func(t *testing.T) {
		cfg, _, err := Parse([]string{"-definitions", "/flag", "/positional"}, &testutil.SafeBuffer{})
		require.NoError(t, err)
		assert.Equal(t, "/flag", cfg.DefinitionsPath)
	})

	t.Run("pipeline selection", func(t *testing.T) {
		cfg, _, err := Parse([]string{"-pipeline", "release", "/tmp/pipes"}, &testutil.SafeBuffer{})
		require.NoError(t, err)
		assert.Equal(t, "release", cfg.PipelineName)
	})
}

func TestParse_EnvironmentDefaults(t *testing.T) {
	t.Setenv("FORGEPIPE_DEFINITIONS", "/from/env")
	t.Setenv("FORGEPIPE_LOG_LEVEL", "debug")

	cfg, exit, err := Parse(nil, &testutil.SafeBuffer{})
	require.NoError(t, err)
	require.False(t, exit)
	assert.Equal(t, "/from/env", cfg.DefinitionsPath)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	out := &testutil.SafeBuffer{}
	cfg, exit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	out := &testutil.SafeBuffer{}
	_, exit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, exit)
	assert.Contains(t, out.String(), "forgepipe")
}

func TestParse_InvalidValues(t *testing.T) {
	t.Run("log format", func(t *testing.T) {
		_, _, err := Parse([]string{"-log-format", "xml", "/tmp/p"}, &testutil.SafeBuffer{})
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
		assert.Contains(t, exitErr.Message, "log-format")
	})

	t.Run("log level", func(t *testing.T) {
		_, _, err := Parse([]string{"-log-level", "loud", "/tmp/p"}, &testutil.SafeBuffer{})
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Contains(t, exitErr.Message, "log-level")
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, _, err := Parse([]string{"-bogus"}, &testutil.SafeBuffer{})
		require.Error(t, err)
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})
}

func TestParse_CaseInsensitiveLogValues(t *testing.T) {
	cfg, _, err := Parse([]string{"-log-format", "JSON", "-log-level", "DEBUG", "/tmp/p"}, &testutil.SafeBuffer{})
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}
