package router

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyMessage is returned by Respond for a blank message.
var ErrEmptyMessage = errors.New("message is empty")

// ConfigurationError means a backend is not usable as configured, for example
// a missing credential. It drives fallback and is never shown to users.
type ConfigurationError struct {
	Backend Route
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend %s not configured", e.Backend)
	}
	return fmt.Sprintf("backend %s not configured: %v", e.Backend, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransientBackendError is a failed generation call (timeout, network,
// non-2xx status, empty output).
type TransientBackendError struct {
	Backend Route
	Err     error
}

func (e *TransientBackendError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Backend, e.Err)
}

func (e *TransientBackendError) Unwrap() error { return e.Err }

// ClassificationError is a classifier call that failed or produced no label.
type ClassificationError struct {
	Output string
	Err    error
}

func (e *ClassificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classification failed: %v", e.Err)
	}
	return fmt.Sprintf("classification output not understood: %q", e.Output)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// TotalOutageError collects the failure of every attempted backend.
type TotalOutageError struct {
	Attempts []error
}

func (e *TotalOutageError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, err := range e.Attempts {
		parts[i] = err.Error()
	}
	return "all backends failed: " + strings.Join(parts, "; ")
}

func (e *TotalOutageError) Unwrap() []error { return e.Attempts }
