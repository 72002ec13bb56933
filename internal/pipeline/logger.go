package pipeline

import "github.com/whispersubs/whispersubs/internal/logger"

// GetLogger returns the pipeline module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("pipeline")
}
