package request

import (
	"errors"
	"fmt"
)

// BuildError reports a request that could not be constructed, before
// anything reached the network.
type BuildError struct {
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("request: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error {
	return e.Err
}

// StatusError reports a non-2xx response. Body holds up to the first
// 8 KiB of the response body for diagnostics.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("request: %s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
