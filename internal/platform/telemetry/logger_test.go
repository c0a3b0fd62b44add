package telemetry_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/blocksweep/blocksweep/internal/platform/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("info", "json", &buf)

	logger.Info("test message", "key", "value")

	var entry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &entry)
	require.NoError(t, err)

	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger("warn", "json", &buf)

	logger.Info("should not appear")

	assert.Empty(t, buf.String())
}

func TestNewLogger_FansOutToAllWriters(t *testing.T) {
	var stderr bytes.Buffer
	logs := telemetry.NewLogBuffer(1024)
	logger := telemetry.NewLogger("info", "text", &stderr, logs)

	logger.Info("scan complete", "found", 2)

	assert.Contains(t, stderr.String(), "scan complete")
	assert.Contains(t, logs.String(), "found=2")
}

func TestLogBuffer_DropsOldestLines(t *testing.T) {
	logs := telemetry.NewLogBuffer(20)

	_, _ = logs.Write([]byte("first line\n"))
	_, _ = logs.Write([]byte("second line\n"))
	_, _ = logs.Write([]byte("third\n"))

	out := logs.String()
	assert.NotContains(t, out, "first")
	assert.True(t, strings.HasSuffix(out, "third\n"))
	assert.LessOrEqual(t, len(out), 20)
}
