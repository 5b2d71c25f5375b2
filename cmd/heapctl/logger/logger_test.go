package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Disabled(t *testing.T) {
	closeFn, err := Init(Options{})
	require.NoError(t, err)
	require.NoError(t, closeFn())
	assert.False(t, L.Enabled(t.Context(), slog.LevelError))
}

func TestInit_StderrText(t *testing.T) {
	var buf bytes.Buffer
	closeFn, err := Init(Options{Enabled: true, Level: slog.LevelDebug, Stderr: &buf})
	require.NoError(t, err)
	defer closeFn()

	L.Debug("arena extended", "bytes", 4096)
	assert.Contains(t, buf.String(), "msg=\"arena extended\" bytes=4096")
}

func TestInit_JSONFile(t *testing.T) {
	dir := t.TempDir()
	closeFn, err := Init(Options{Enabled: true, LogDir: dir, JSON: true})
	require.NoError(t, err)

	L.Info("run finished", "traces", 3)
	L.Debug("filtered out")
	require.NoError(t, closeFn())

	name := filepath.Join(dir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run finished","traces":3`)
	assert.NotContains(t, string(data), "filtered out")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	l, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{
		"heapctl-2024-01-01.log", // expired
		"heapctl-2024-03-19.log",
		"heapctl-garbage.log",
		"other-2024-01-01.log",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o600))
	}

	cleanOldLogs(dir, now)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{"heapctl-2024-03-19.log", "heapctl-garbage.log", "other-2024-01-01.log"}, left)
}
