package observability

import "github.com/whispersubs/whispersubs/internal/logger"

// GetLogger returns the telemetry module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
