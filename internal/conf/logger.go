package conf

import "github.com/whispersubs/whispersubs/internal/logger"

// GetLogger returns the config module logger. It is fetched on every call
// because the global logger is replaced once settings are loaded.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
