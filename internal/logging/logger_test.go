package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/graphrepo/internal/config"
)

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LoggingConfig{Level: "debug", Format: "JSON"})

	logger.Debug("executing query", "component", "query")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "executing query", entry["msg"])
	assert.Equal(t, "graphrepo", entry["app"])
	assert.Equal(t, "query", entry["component"])
}

func TestNewWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, config.LoggingConfig{Level: "warn"})

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLevel(" Warning "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}
