package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter receives built errors when reporting is active
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter forwards errors to Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// IsEnabled returns whether Sentry reporting is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError sends ee to Sentry once, scrubbing the message and string
// context values first.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessageForPrivacy(fmt.Sprintf("[%s] %s", ee.Category, ee.Err.Error()))
	title := generateErrorTitle(ee)
	level := getErrorLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", string(ee.Category))

		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessageForPrivacy(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}

		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// InitSentry initializes the Sentry client and installs the reporter
func InitSentry(dsn, release string, debug bool) error {
	if dsn == "" {
		return fmt.Errorf("sentry dsn is empty")
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		Debug:            debug,
		AttachStacktrace: true,
	}); err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushTelemetry waits up to timeout for queued Sentry events
func FlushTelemetry(timeout time.Duration) {
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		sentry.Flush(timeout)
	}
}

// generateErrorTitle builds "Whisper Model Inference Error Process Chunk"
// style titles from component, category and the operation context.
func generateErrorTitle(ee *EnhancedError) string {
	var parts []string

	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, titleCase(c))
	}
	if cat := formatCategoryForTitle(ee.Category); cat != "" {
		parts = append(parts, cat)
	}
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		parts = append(parts, formatOperationForTitle(op))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

func formatCategoryForTitle(category ErrorCategory) string {
	switch category {
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryValidation:
		return "Validation Error"
	case CategoryModelLoad:
		return "Model Loading Error"
	case CategoryModelInference:
		return "Model Inference Error"
	case CategoryAudio, CategoryAudioSource:
		return "Audio Error"
	case CategoryBuffer:
		return "Buffer Error"
	case CategoryNetwork, CategoryHTTP:
		return "Network Error"
	case CategoryMQTTConnection, CategoryMQTTPublish:
		return "MQTT Error"
	case CategoryFileIO:
		return "File I/O Error"
	default:
		return string(category)
	}
}

func formatOperationForTitle(operation string) string {
	words := strings.Fields(strings.ReplaceAll(operation, "_", " "))
	for i, w := range words {
		words[i] = titleCase(w)
	}
	return strings.Join(words, " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func getErrorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryModelLoad, CategoryConfiguration, CategoryValidation, CategorySystem:
		return sentry.LevelError
	case CategoryNetwork, CategoryHTTP, CategoryMQTTConnection, CategoryMQTTPublish, CategoryTimeout:
		return sentry.LevelWarning
	case CategoryModelInference, CategoryAudio, CategoryAudioSource, CategoryBuffer:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	reporterMu              sync.RWMutex
	globalTelemetryReporter TelemetryReporter
)

// SetTelemetryReporter installs the global reporter; nil disables reporting
func SetTelemetryReporter(reporter TelemetryReporter) {
	reporterMu.Lock()
	globalTelemetryReporter = reporter
	reporterMu.Unlock()
	updateReportingState()
}

// GetTelemetryReporter returns the current reporter
func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return globalTelemetryReporter
}

func reportToTelemetry(ee *EnhancedError) {
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegexes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)api[_-]?key[=:]\S+`),
		regexp.MustCompile(`(?i)token[=:]\S+`),
		regexp.MustCompile(`(?i)bearer\s+\S+`),
		regexp.MustCompile(`sk-[A-Za-z0-9_-]{8,}`),
		regexp.MustCompile(`[0-9a-fA-F]{32,}`),
	}
)

// scrubMessageForPrivacy strips URL query strings and credential-like
// tokens from messages bound for telemetry
func scrubMessageForPrivacy(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	for _, re := range secretRegexes {
		scrubbed = re.ReplaceAllString(scrubbed, "[API_KEY_REDACTED]")
	}
	return scrubbed
}
