// Package security provides validation, sanitization, and limits for the batch packages.
package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// Limits
const (
	// MaxNameLength is the maximum length for queue and processor names
	MaxNameLength = 255

	// MaxRetries is the hard limit for retry attempts after the first one
	MaxRetries = 100

	// MaxConcurrency is the hard limit for concurrently processing jobs
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for recorded error messages
	MaxErrorMessageLength = 4096
)

// validName matches alphanumeric, hyphens, underscores, and dots
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateName validates a queue or processor name.
func ValidateName(name string) error {
	if name == "" {
		return core.ErrInvalidName
	}
	if len(name) > MaxNameLength {
		return core.ErrNameTooLong
	}
	if !validName.MatchString(name) {
		return core.ErrInvalidName
	}
	return nil
}

// SanitizeErrorMessage strips control characters and truncates long messages.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures retry count is within limits
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
