package validator

import (
	"fmt"
	"strings"
)

// FormatError formats a ValidationError into a human-readable error message.
func FormatError(err ValidationError) string {
	// Enumeration errors list the allowed values
	if err.Kind == KindEnumeration && len(err.Allowed) > 0 && !strings.Contains(err.Message, "must be") {
		return fmt.Sprintf("%s: '%s' is not valid, must be one of: %s",
			err.Key, err.Value, strings.Join(err.Allowed, ", "))
	}

	if err.Message == "" {
		return fmt.Sprintf("%s: %s", err.Key, err.Kind)
	}

	return fmt.Sprintf("%s: %s", err.Key, err.Message)
}

// FormatErrors formats all validation errors into a slice of human-readable messages.
func FormatErrors(result ValidationResult) []string {
	messages := make([]string, len(result.Errors))
	for i, err := range result.Errors {
		messages[i] = FormatError(err)
	}
	return messages
}

// CountByKind tallies errors per kind for report summaries
func CountByKind(errs []ValidationError) map[ErrorKind]int {
	counts := make(map[ErrorKind]int)
	for _, e := range errs {
		counts[e.Kind]++
	}
	return counts
}
