package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "stroop.log")

	log, closer, err := Setup("debug", path)
	require.NoError(t, err)
	defer closer()

	log.Info("hello", "k", "v")
	closer()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "k=v")
}

func TestSetupWithoutFile(t *testing.T) {
	log, closer, err := Setup("", "")
	require.NoError(t, err)
	defer closer()
	require.NotNil(t, log)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, _, err := Setup("loud", "")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
