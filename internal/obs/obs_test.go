package obs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ConsoleOmitsTime(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Console: &buf})
	require.NoError(t, err)
	defer closer.Close()

	Test(logger, "TestStream").Info("Searching for", "query", "Chess")

	line := buf.String()
	assert.Contains(t, line, "level=INFO")
	assert.Contains(t, line, `msg="Searching for"`)
	assert.Contains(t, line, "query=Chess")
	assert.Contains(t, line, "test=TestStream")
	assert.NotContains(t, line, "time=")
}

func TestNew_FileAndConsoleBothReceiveRecords(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	logger, closer, err := New(Options{Console: &buf, LogDir: filepath.Join(dir, "logs")})
	require.NoError(t, err)

	Pkg(logger, "pages").Warn("No image found matching alt", "query", "Chess")
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "level=WARN")

	data, err := os.ReadFile(filepath.Join(dir, "logs", DefaultLogFile))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "pages", record["pkg"])
	assert.Equal(t, "Chess", record["query"])

	ts, ok := record["time"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestNew_LevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Console: &buf, Level: slog.LevelInfo})
	require.NoError(t, err)

	logger.Debug("wait check failed")
	logger.Info("overlay dismissed")

	assert.NotContains(t, buf.String(), "wait check failed")
	assert.Contains(t, buf.String(), "overlay dismissed")
}

func TestNew_NoSinksIsNop(t *testing.T) {
	logger, closer, err := New(Options{})
	require.NoError(t, err)
	require.NoError(t, closer.Close())
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
}

func TestNew_FileAppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		logger, closer, err := New(Options{LogDir: dir})
		require.NoError(t, err)
		logger.Info("run", "n", i)
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultLogFile))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), `"msg":"run"`))
}
