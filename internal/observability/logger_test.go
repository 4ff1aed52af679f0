// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/stealthbrowse/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colorizes levels", func(t *testing.T) {
		buf := newBufferLogger(t, config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "browse",
			Colors:      config.ColorConfig{Info: "green"},
		})

		GetLogger().Named("session").Info("attached to browser")
		Sync()

		output := buf.String()
		assert.Contains(t, output, colorGreen+"INFO"+colorReset)
		assert.Contains(t, output, "browse.session.")
		assert.Contains(t, output, "attached to browser")
	})

	t.Run("json logger emits structured fields", func(t *testing.T) {
		buf := newBufferLogger(t, config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "browse",
		})

		GetLogger().Warn("step failed", zap.String("command", "click"))
		Sync()

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "browse", entry["logger"])
		assert.Equal(t, "step failed", entry["msg"])
		assert.Equal(t, "click", entry["command"])
	})

	t.Run("level filtering", func(t *testing.T) {
		buf := newBufferLogger(t, config.LoggerConfig{Level: "warn", Format: "json"})

		GetLogger().Info("hidden")
		GetLogger().Error("shown")
		Sync()

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		buf := newBufferLogger(t, config.LoggerConfig{Level: "loud", Format: "json"})

		GetLogger().Debug("debug line")
		GetLogger().Info("info line")
		Sync()

		assert.NotContains(t, buf.String(), "debug line")
		assert.Contains(t, buf.String(), "info line")
	})

	t.Run("writes json to the log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "browse.log")
		newBufferLogger(t, config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: logFile,
			MaxSize: 1,
		})

		GetLogger().Error("persisted line")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"persisted line"`)
	})

	t.Run("only the first call takes effect", func(t *testing.T) {
		buf := newBufferLogger(t, config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"})
		first := GetLogger()

		var other bytes.Buffer
		Initialize(config.LoggerConfig{Level: "debug", ServiceName: "second"}, zapcore.AddSync(&other))
		assert.Same(t, first, GetLogger())

		GetLogger().Info("hello")
		Sync()
		assert.True(t, strings.Contains(buf.String(), "first"))
		assert.Zero(t, other.Len())
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.Nil(t, globalLogger.Load(), "fallback must not be stored globally")
}
