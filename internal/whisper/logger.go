package whisper

import "github.com/whispersubs/whispersubs/internal/logger"

// GetLogger returns the whisper module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("whisper")
}
