package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer, level LogLevel) *ProductionLogger {
	l := NewProductionLoggerTo(buf, "go-mechanic", level)
	l.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestProductionLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LogLevelInfo)

	l.Info("diagnosis completed", "provider", "fast-inference", "confidence", 85, "error", errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "go-mechanic", entry["service"])
	assert.Equal(t, "2025-01-02T03:04:05Z", entry["timestamp"])

	fields := entry["fields"].(map[string]interface{})
	assert.Equal(t, "fast-inference", fields["provider"])
	assert.Equal(t, float64(85), fields["confidence"])
	assert.Equal(t, "boom", fields["error"])
}

func TestProductionLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LogLevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	l.Error("shown")
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestProductionLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, LogLevelDebug)
	l.SetStructured(false)

	l.Debug("provider configured", "provider", "fast-inference", "api_key", "sk-live-123", "jwt_token", "abc")

	out := buf.String()
	assert.NotContains(t, out, "sk-live-123")
	assert.NotContains(t, out, "abc\n")
	assert.Contains(t, out, "api_key=[REDACTED]")
	assert.Contains(t, out, "[2025-01-02T03:04:05Z] DEBUG [go-mechanic] provider configured provider=fast-inference")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, LogLevelError, ParseLogLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLogLevel(""))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("verbose"))
}

func TestNewLogger_TestEnvironmentIsSilent(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	_, ok := NewLogger("go-mechanic").(*NoOpLogger)
	assert.True(t, ok)
}
