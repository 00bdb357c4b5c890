package config

import (
	"errors"
	"fmt"
	"strings"
)

// Categories of ConfigError.
const (
	CategoryMissing       = "missing"
	CategoryInvalid       = "invalid"
	CategoryNotConfigured = "not_configured"
)

// ErrNotConfigured marks an optional feature that was left out on purpose.
var ErrNotConfigured = errors.New("not configured")

// ConfigError describes one configuration problem together with the action
// that fixes it. Messages are lowercase.
//
//nolint:revive // the package name is part of the public vocabulary
type ConfigError struct {
	Category string
	Field    string // dotted path, e.g. "upstreams[budget].base_url"
	Message  string
	Action   string
	Details  []string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}

	if e.Category != "" {
		write("config_" + e.Category + ":")
	}
	write(e.Field)
	write(e.Message)
	write(e.Action)
	write(strings.Join(e.Details, "; "))
	return b.String()
}

// Unwrap returns nil; ConfigError is a leaf.
func (e *ConfigError) Unwrap() error {
	return nil
}

// NewMissingFieldError reports a required field that has no value.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVar, yamlPath, DefaultPath),
	}
}

// NewInvalidFieldError reports a value outside its allowed range. validOptions
// may be empty.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	e := NewValidationError(field, message)
	if len(validOptions) > 0 {
		e.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return e
}

// NewNotConfiguredError reports an optional feature that is absent.
func NewNotConfiguredError(feature, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: CategoryNotConfigured,
		Field:    feature,
		Message:  "(optional)",
		Action:   fmt.Sprintf("to enable: set %s env var or add %s to %s", envVar, yamlPath, DefaultPath),
	}
}

// NewValidationError reports an invalid field with a free-form message.
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
}

// IsNotConfigured reports whether err is ErrNotConfigured or wraps a
// not_configured ConfigError.
func IsNotConfigured(err error) bool {
	if errors.Is(err, ErrNotConfigured) {
		return true
	}
	var ce *ConfigError
	return errors.As(err, &ce) && ce.Category == CategoryNotConfigured
}
