package recurrence

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConfigurationError reports an invalid rule definition. It is returned at
// construction time so a bad rule never reaches a scheduling cycle.
type ConfigurationError struct {
	// Field names the offending input (e.g. "every", "anchor", "expression").
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid rule %s: %s", e.Field, e.Message)
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
