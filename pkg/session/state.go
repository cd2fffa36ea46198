package session

// State identifies where the session is in its connection lifecycle.
type State uint8

const (
	// StateIdle means no connection exists and none is being attempted.
	StateIdle State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateOpen means the connection is established and writable.
	StateOpen

	// StateClosing means a caller-initiated shutdown is in progress.
	StateClosing

	// StateReconnecting means the session is waiting out a backoff
	// delay before the next automatic dial.
	StateReconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// SendStatus reports the outcome of a Send.
type SendStatus int

const (
	// StatusQueued means the message waits in the outbound queue for
	// the connection to open.
	StatusQueued SendStatus = iota + 1

	// StatusSent means every frame of the message reached the
	// transport.
	StatusSent
)

// String returns a human-readable status name.
func (st SendStatus) String() string {
	switch st {
	case StatusQueued:
		return "queued"
	case StatusSent:
		return "sent"
	default:
		return "unknown"
	}
}
