package session

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the session package.
var (
	// ErrNoServiceURL is returned when a config lacks the service URL.
	ErrNoServiceURL = errors.New("session: service URL required")

	// ErrNoLookupKey is returned when a config lacks the agent lookup
	// key.
	ErrNoLookupKey = errors.New("session: lookup key required")

	// ErrNoProjectID is returned when a config lacks the project ID.
	ErrNoProjectID = errors.New("session: project ID required")

	// ErrDisconnected is returned by Connect when Disconnect is called
	// before the dial completes.
	ErrDisconnected = errors.New("session: disconnected before connect completed")
)

// ConnectError reports a failed dial along with the endpoint that was
// being reached.
type ConnectError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("session: connect %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying dial error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}
