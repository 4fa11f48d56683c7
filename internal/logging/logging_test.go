package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volume-sage/internal/config"
)

func TestZeroKeyvals(t *testing.T) {
	var buf bytes.Buffer
	l := Zero{Logger: zerolog.New(&buf)}

	l.Info("deleted", "path", "/v/._a", "size", 4096, "error", errors.New("boom"), "dangling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "deleted", entry["message"])
	assert.Equal(t, "/v/._a", entry["path"])
	assert.EqualValues(t, 4096, entry["size"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "MISSING", entry["dangling"])
}

func TestNewWithWriterJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := NewWithWriter(config.LoggingCfg{Level: "warn", Format: "json"}, &buf)
	defer closer.Close()

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)
}

func TestNewWithWriterTeesToFile(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "volume-sage.log")

	logger, closer := NewWithWriter(config.LoggingCfg{Format: "json", File: logFile}, &buf)
	logger.Info().Str("path", "/v").Msg("sweep started")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sweep started")
	assert.Contains(t, buf.String(), "sweep started")
}

func TestRotateLogsIfNeeded(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "volume-sage.log")
	require.NoError(t, os.WriteFile(logPath, []byte("old\n"), 0o644))

	old := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(logPath, old, old))

	rotateLogsIfNeeded(logPath, 7)

	_, err := os.Stat(logPath)
	assert.True(t, os.IsNotExist(err), "current log should have been rotated away")

	// The rotated file is itself older than the cutoff, so cleanup removes it too.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRotateLogsKeepsFreshLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "volume-sage.log")
	require.NoError(t, os.WriteFile(logPath, []byte("fresh\n"), 0o644))

	rotateLogsIfNeeded(logPath, 7)

	_, err := os.Stat(logPath)
	assert.NoError(t, err)
}
