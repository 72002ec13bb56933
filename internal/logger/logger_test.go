package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *moduleLogger {
	return &moduleLogger{
		logger: slog.New(newTextHandler(buf, level, time.UTC)),
		level:  level,
	}
}

func TestModuleLoggerLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		level     slog.Level
		logFunc   func(l Logger)
		wantLevel string
		wantLog   bool
	}{
		{"debug at debug", slog.LevelDebug, func(l Logger) { l.Debug("msg") }, "DEBUG", true},
		{"debug at info", slog.LevelInfo, func(l Logger) { l.Debug("msg") }, "DEBUG", false},
		{"info at info", slog.LevelInfo, func(l Logger) { l.Info("msg") }, "INFO", true},
		{"warn at info", slog.LevelInfo, func(l Logger) { l.Warn("msg") }, "WARN", true},
		{"trace at debug", slog.LevelDebug, func(l Logger) { l.Trace("msg") }, "TRACE", false},
		{"trace at trace", traceLevelValue, func(l Logger) { l.Trace("msg") }, "TRACE", true},
		{"error at error", slog.LevelError, func(l Logger) { l.Error("msg") }, "ERROR", true},
		{"explicit warn at error", slog.LevelError, func(l Logger) { l.Log(LogLevelWarn, "msg") }, "WARN", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			tt.logFunc(newBufferLogger(&buf, tt.level))

			if tt.wantLog {
				assert.Contains(t, buf.String(), tt.wantLevel)
				assert.Contains(t, buf.String(), "msg")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestTextHandlerFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newBufferLogger(&buf, slog.LevelInfo).Module("pipeline").Module("worker")

	log.Info("chunk extracted",
		String("policy", "sliding"),
		Int("samples", 48000),
		Duration("elapsed", 1500*time.Millisecond),
		String("note", "has spaces"))

	line := buf.String()
	assert.Contains(t, line, "INFO  [pipeline.worker] chunk extracted")
	assert.Contains(t, line, "policy=sliding")
	assert.Contains(t, line, "samples=48000")
	assert.Contains(t, line, "elapsed=1.5s")
	assert.Contains(t, line, `note="has spaces"`)
	assert.True(t, strings.HasPrefix(line, "["), "line should start with a timestamp: %q", line)
}

func TestWithFieldsAreImmutable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := newBufferLogger(&buf, slog.LevelInfo).Module("audio")
	child := base.With(String("source", "capture"))

	base.Info("parent")
	assert.NotContains(t, buf.String(), "source=capture")

	buf.Reset()
	child.Info("child")
	assert.Contains(t, buf.String(), "source=capture")
}

func TestWithContextTraceID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newBufferLogger(&buf, slog.LevelInfo)

	log.WithContext(WithTraceID(t.Context(), "abc-123")).Info("traced")
	assert.Contains(t, buf.String(), "trace_id=abc-123")

	buf.Reset()
	log.WithContext(t.Context()).Info("untraced")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestSensitiveFieldsRedacted(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newBufferLogger(&buf, slog.LevelInfo)

	log.Info("engine configured",
		String("api_key", "sk-verysecretvalue"),
		String("base_url", "http://localhost:8080/v1"),
		Error(fmt.Errorf("upstream said: Authorization: Bearer abcdef123456")))

	out := buf.String()
	assert.NotContains(t, out, "verysecretvalue")
	assert.NotContains(t, out, "abcdef123456")
	assert.Contains(t, out, "base_url=http://localhost:8080/v1")
}

func TestNewSlogLoggerJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewSlogLogger(&buf, LogLevelDebug, time.UTC).Module("subtitle")
	log.Debug("published", String("text", "hola"), Float64("latency", 1.23456))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "published", rec["msg"])
	assert.Equal(t, "subtitle", rec["module"])
	assert.Equal(t, "hola", rec["text"])
	assert.InDelta(t, 1.235, rec["latency"], 0.0001)
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "logs", "main.log")
	audioPath := filepath.Join(dir, "logs", "audio.log")

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: mainPath, Level: "debug"},
		ModuleOutputs: map[string]ModuleOutput{
			"audio": {Enabled: true, FilePath: audioPath, Level: "info"},
		},
	})
	require.NoError(t, err)

	cl.Module("pipeline").Debug("to main file")
	cl.Module("audio").Debug("filtered out")
	cl.Module("audio").Info("to audio file")

	require.NoError(t, cl.Close())

	mainLog, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Contains(t, string(mainLog), "to main file")
	assert.NotContains(t, string(mainLog), "to audio file")

	audioLog, err := os.ReadFile(audioPath)
	require.NoError(t, err)
	assert.Contains(t, string(audioLog), "to audio file")
	assert.NotContains(t, string(audioLog), "filtered out")
}

func TestCentralLoggerInvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)

	_, err = NewCentralLogger(nil)
	require.Error(t, err)
}

func TestBufferedFileWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "buffered.log")
	w, err := NewBufferedFileWriter(path, WithFlushInterval(0), WithBufferSize(1024))
	require.NoError(t, err)

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, w.Buffered())

	require.NoError(t, w.Flush())
	assert.Equal(t, 0, w.Buffered())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")

	_, err = w.Write([]byte("late"))
	require.Error(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
