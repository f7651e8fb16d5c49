package logger

import (
	"log/slog"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// sensitivePatterns match credentials embedded in free text such as
// provider error bodies and connection strings.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`()sk-[A-Za-z0-9_\-]{16,}`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|x-goog-api-key|x-api-key|password|secret)[\s:=]+)[^;,\s"&]{4,}`),
	regexp.MustCompile(`(//[^:/@\s]+:)[^@\s]+(@)`),
	regexp.MustCompile(`(\b[A-Za-z0-9_]+:)[^@\s:/]+(@tcp)`),
}

var sensitiveKeys = []string{
	"password", "passwd", "secret", "api_key", "apikey", "authorization", "credential",
}

// RedactSensitiveData replaces credentials in input with [REDACTED]
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitivePatterns {
		input = pattern.ReplaceAllString(input, "${1}"+redacted+"${2}")
	}
	return input
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if isSensitiveKey(a.Key) {
		if a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redacted)
	}
	return slog.String(a.Key, RedactSensitiveData(a.Value.String()))
}
