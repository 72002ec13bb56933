// Package logger provides module-aware structured logging built on log/slog.
//
// Every package gets its own module logger from the global CentralLogger:
//
//	log := logger.Global().Module("pipeline")
//	log.Info("pipeline started",
//	    logger.String("pipeline_id", id),
//	    logger.Duration("chunk_duration", cfg.ChunkDuration))
//
// Sub-modules are joined with a dot, so Module("pipeline").Module("worker")
// logs with module="pipeline.worker".
//
// Console output is human-readable text without timestamps:
//
//	INFO  [pipeline] pipeline started pipeline_id=6f1c... chunk_duration=3s
//
// File output is JSON with RFC3339 timestamps. Values of fields whose key
// looks like a credential (api_key, password, token) are redacted before they
// reach any handler.
//
// Tests that need a silent or capturable logger use NewSlogLogger:
//
//	log := logger.NewSlogLogger(io.Discard, logger.LogLevelError, time.UTC)
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
// Keys are interned with unique.Make so hot-path keys such as "error" or
// "samples" share one allocation.
type Field struct {
	Key   string
	Value any
}

func internKey(key string) string {
	return unique.Make(key).Value()
}

var (
	errorKey   = internKey("error")
	moduleKey  = internKey("module")
	traceIDKey = internKey("trace_id")
)

// Logger is the logging interface injected into components
type Logger interface {
	// Module returns a logger scoped to a sub-module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every record
	With(fields ...Field) Logger
	// WithContext attaches the trace ID carried by ctx, if any
	WithContext(ctx context.Context) Logger

	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field, used for sample counts, sizes and rates.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Uint64 creates an unsigned 64-bit integer field.
func Uint64(key string, value uint64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a float field. Output is rounded to three decimals.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field. The key is always "error"; a nil error logs
// a nil value.
//
//	if err := model.Process(ctx, samples, params); err != nil {
//	    log.Warn("inference failed, dropping chunk",
//	        logger.Error(err),
//	        logger.Int("samples", len(samples)))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field rendered as a string such as "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field holding an arbitrary value. Prefer the typed
// constructors for simple values.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}
