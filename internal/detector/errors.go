package detector

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInputKind is returned when Detect receives something other
	// than a string or a slice of strings.
	ErrInvalidInputKind = errors.New("can only evaluate string or []string")

	ErrConfiguration        = errors.New("detector configuration error")
	ErrClassifierLoad       = errors.New("classifier load failed")
	ErrClassifierInvocation = errors.New("classifier invocation failed")
)

// ConfigError describes an invalid detector setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("detector config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ClassifierLoadError is returned when a classifier resource cannot be
// initialized. The detector is not constructed.
type ClassifierLoadError struct {
	Resource string
	Err      error
}

func (e *ClassifierLoadError) Error() string {
	return fmt.Sprintf("load classifier %s: %v", e.Resource, e.Err)
}

func (e *ClassifierLoadError) Unwrap() error { return e.Err }

func (e *ClassifierLoadError) Is(target error) bool {
	return target == ErrClassifierLoad
}

// ClassifierInvocationError wraps a failure raised while a classifier scored
// a batch. No partial scores accompany it.
type ClassifierInvocationError struct {
	Detector string
	Err      error
}

func (e *ClassifierInvocationError) Error() string {
	return fmt.Sprintf("detector %s: classifier invocation: %v", e.Detector, e.Err)
}

func (e *ClassifierInvocationError) Unwrap() error { return e.Err }

func (e *ClassifierInvocationError) Is(target error) bool {
	return target == ErrClassifierInvocation
}
