// Package secrets resolves credentials given inline, through environment
// variable references or as files such as Docker and Kubernetes secrets.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/whispersubs/whispersubs/internal/errors"
	"github.com/whispersubs/whispersubs/internal/logger"
)

// maxSecretFileSize limits secret file reads; secrets are tokens, not data
const maxSecretFileSize = 64 * 1024

// ExpandString resolves ${VAR} and ${VAR:-default} references in s. A
// referenced variable that is unset and has no default is an error.
func ExpandString(s string) (string, error) {
	if s == "" || !strings.Contains(s, "${") {
		return s, nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", secretError(fmt.Errorf("missing environment variable(s): %s", strings.Join(missing, ", ")))
	}
	return expanded, nil
}

// ReadFile reads a secret file, trimming trailing newlines. Files readable
// by group or others are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", secretError(fmt.Errorf("secret file path is empty"))
	}
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", secretError(fmt.Errorf("failed to stat secret file %s: %w", clean, err))
	}
	if !info.Mode().IsRegular() {
		return "", secretError(fmt.Errorf("secret path is not a regular file: %s", clean))
	}
	if info.Size() > maxSecretFileSize {
		return "", secretError(fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, clean))
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Global().Module("secrets").Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", secretError(fmt.Errorf("failed to read secret file %s: %w", clean, err))
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", secretError(fmt.Errorf("secret file is empty: %s", clean))
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded. Both empty yields "".
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return ExpandString(value)
}

func secretError(err error) error {
	return errors.New(err).
		Component("secrets").
		Category(errors.CategoryConfiguration).
		Build()
}
