// Package errors provides categorized errors with optional telemetry.
//
// Errors are built fluently and carry the component and category used for
// grouping in logs, metrics and Sentry:
//
//	return errors.New(err).
//	    Component("whisper").
//	    Category(errors.CategoryModelLoad).
//	    Context("engine", name).
//	    Build()
//
// The package also passes through Is, As, Unwrap and Join so callers can use
// it as a drop-in replacement for the standard library errors package.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for grouping
type ErrorCategory string

// CategorizedError is implemented by errors that know their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryValidation     ErrorCategory = "validation"
	CategoryModelLoad      ErrorCategory = "model-loading"
	CategoryModelInference ErrorCategory = "model-inference"
	CategoryAudio          ErrorCategory = "audio-processing"
	CategoryAudioSource    ErrorCategory = "audio-source"
	CategoryBuffer         ErrorCategory = "audio-buffer"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryNetwork        ErrorCategory = "network"
	CategoryHTTP           ErrorCategory = "http-request"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategoryMQTTPublish    ErrorCategory = "mqtt-publish"
	CategoryState          ErrorCategory = "state"
	CategorySystem         ErrorCategory = "system-resource"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryCancellation   ErrorCategory = "cancellation"
	CategoryGeneric        ErrorCategory = "generic"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component, category and context
type EnhancedError struct {
	Err       error
	component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
	reported  bool
	mu        sync.RWMutex
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches another EnhancedError by category, anything else through the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.component
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// MarkReported marks this error as sent to telemetry
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported reports whether the error was already sent to telemetry
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an enhanced error around err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts building an enhanced error from a format string
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name (auto-detected when reporting is active)
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a context value
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Timing records the failed operation and how long it ran
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the EnhancedError, then runs hooks and telemetry when any
// are registered.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if !hasActiveReporting.Load() {
		ee := &EnhancedError{
			Err:       eb.err,
			component: eb.component,
			Category:  eb.category,
			Context:   eb.context,
			Timestamp: time.Now(),
		}
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if eb.component == "" {
		eb.component = detectComponent()
	}
	if eb.category == "" {
		eb.category = detectCategory(eb.err)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}

	runHooks(ee)
	reportToTelemetry(ee)

	return ee
}

const modulePrefix = "github.com/whispersubs/whispersubs/"

// detectComponent walks the call stack for the first frame outside this
// package and names the component after its package.
func detectComponent() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if component := componentFromFunc(frame.Function); component != "" {
			return component
		}
		if !more {
			break
		}
	}
	return ComponentUnknown
}

// componentFromFunc maps "github.com/whispersubs/whispersubs/internal/audio.(*RingBuffer).Append"
// to "audio". Frames from this package or outside the module yield "".
func componentFromFunc(funcName string) string {
	if !strings.HasPrefix(funcName, modulePrefix) {
		return ""
	}
	path := strings.TrimPrefix(funcName, modulePrefix)
	path = strings.TrimPrefix(path, "internal/")
	if dot := strings.Index(path, "."); dot > 0 {
		path = path[:dot]
	}
	if path == "errors" {
		return ""
	}
	return path
}

// detectCategory guesses a category from the error chain and message
func detectCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}

	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "model") && strings.Contains(msg, "load"):
		return CategoryModelLoad
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return CategoryTimeout
	case strings.Contains(msg, "context canceled"):
		return CategoryCancellation
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dial"):
		return CategoryNetwork
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "validation"):
		return CategoryValidation
	case strings.Contains(msg, "file"), strings.Contains(msg, "open"):
		return CategoryFileIO
	}
	return CategoryGeneric
}

// NewStd creates a plain error (passthrough to the standard library)
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is reports whether any error in err's tree matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory checks if err is an EnhancedError with the given category
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}
