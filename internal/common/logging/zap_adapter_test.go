package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel, format string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf, Format: format})
	require.NoError(t, err)
	return logger, &buf
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "INFO", InfoLevel.String())
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
	assert.Equal(t, "UNKNOWN", LogLevel(42).String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestZapAdapter(t *testing.T) {
	t.Run("basic logging", func(t *testing.T) {
		logger, buf := newBufferLogger(t, DebugLevel, "console")

		logger.Debug("debug message", Field{"key", "value"})
		logger.Info("info message", Field{"count", 42})
		logger.Warn("warn message", Field{"enabled", true})
		logger.Error("error message", errors.New("test error"), Field{"code", "ERR123"})

		output := buf.String()
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "info message")
		assert.Contains(t, output, "WARN")
		assert.Contains(t, output, "error message")
		assert.Contains(t, output, "test error")
	})

	t.Run("level filtering", func(t *testing.T) {
		logger, buf := newBufferLogger(t, WarnLevel, "console")

		logger.Debug("hidden debug")
		logger.Info("hidden info")
		logger.Warn("visible warn")

		output := buf.String()
		assert.NotContains(t, output, "hidden")
		assert.Contains(t, output, "visible warn")
	})

	t.Run("with fields", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel, "console")

		logger = logger.WithFields(Field{"component", "dispatcher"})
		logger.Info("test message", Field{"webhook_id", "wh1"})

		output := buf.String()
		assert.Contains(t, output, "dispatcher")
		assert.Contains(t, output, "wh1")
	})

	t.Run("with context", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel, "console")

		ctx := context.WithValue(context.Background(), UserIDKey, "user-123")
		ctx = context.WithValue(ctx, RequestIDKey, "req-456")
		logger.WithContext(ctx).Info("scoped")

		output := buf.String()
		assert.Contains(t, output, "user-123")
		assert.Contains(t, output, "req-456")
	})

	t.Run("context without values returns same logger", func(t *testing.T) {
		logger, _ := newBufferLogger(t, InfoLevel, "console")
		assert.Same(t, logger, logger.WithContext(context.Background()))
	})
}

func TestZapAdapter_JSONFormat(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel, "json")

	logger.Info("structured", Field{"pipeline_id", "p1"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "structured", entry["msg"])
	assert.Equal(t, "p1", entry["pipeline_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestGlobalLogger_Concurrency(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel, "console")
	previous := GetGlobalLogger()
	SetGlobalLogger(logger)
	defer SetGlobalLogger(previous)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			Info("concurrent", Int("n", n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, strings.Count(buf.String(), "concurrent"))
}
