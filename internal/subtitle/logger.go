package subtitle

import "github.com/whispersubs/whispersubs/internal/logger"

// GetLogger returns the subtitle module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("subtitle")
}
