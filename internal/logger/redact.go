package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitivePatterns match credentials embedded in free text, such as an
// Authorization header echoed in an upstream error message.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)((api[_-]?key|token|secret|passw(or)?d)[\s:=]+)([^;,\s]{5,})`),
	regexp.MustCompile(`(sk-)[A-Za-z0-9_-]{8,}`),
}

var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "apikey", "api_key", "authorization", "dsn",
}

// RedactSensitiveData replaces credential-looking substrings with [REDACTED]
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitivePatterns {
		input = pattern.ReplaceAllString(input, "${1}"+redactedValue)
	}
	return input
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}
