package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the slice of a WebSocket connection the session drives.
// *websocket.Conn satisfies it.
type Socket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Socket to an endpoint URL. Implementations must honor
// context cancellation.
type Dialer interface {
	DialContext(ctx context.Context, endpoint string) (Socket, error)
}

// wsDialer is the default Dialer, backed by gorilla/websocket.
type wsDialer struct {
	handshakeTimeout time.Duration
}

func (d *wsDialer) DialContext(ctx context.Context, endpoint string) (Socket, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("%w (HTTP %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

// Endpoint derives the agent channel URL from the service base URL.
// The HTTP scheme maps to its WebSocket equivalent, the path becomes
// /agent/live/<lookupKey> and the project ID rides along as the pid
// query parameter.
func Endpoint(serviceURL, lookupKey, projectID string) (string, error) {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return "", fmt.Errorf("session: parse service URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("session: unsupported service URL scheme %q", u.Scheme)
	}
	u.Path = "/agent/live/" + lookupKey
	u.RawQuery = url.Values{"pid": {projectID}}.Encode()
	return u.String(), nil
}
