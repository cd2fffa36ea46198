package session

import (
	"log/slog"
	"time"
)

// Default tuning values for Config fields left at their zero value.
const (
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultWriteTimeout         = 10 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
)

// Config controls how a Session reaches and maintains its connection.
type Config struct {
	// ServiceURL is the base URL of the agent service, for example
	// "https://agents.example.com". The WebSocket endpoint is derived
	// from it: http maps to ws and https to wss. Required.
	ServiceURL string

	// LookupKey identifies the agent channel to attach to. Required.
	LookupKey string

	// ProjectID scopes the connection to a project and is sent as the
	// pid query parameter. Required.
	ProjectID string

	// AutoConnect makes Send start a connection attempt when the
	// session is idle instead of only queueing. Default: false.
	AutoConnect bool

	// ReconnectBaseDelay is the backoff delay before the first
	// reconnect attempt. Each further attempt doubles it.
	// Default: 1 second.
	ReconnectBaseDelay time.Duration

	// ReconnectMaxDelay caps the backoff delay between reconnect
	// attempts. Default: 30 seconds.
	ReconnectMaxDelay time.Duration

	// MaxReconnectAttempts is how many consecutive reconnect attempts
	// are made before the session gives up and returns to idle.
	// Default: 10.
	MaxReconnectAttempts int

	// WriteTimeout bounds each frame write on the transport.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout bounds the WebSocket dial. Default: 10 seconds.
	HandshakeTimeout time.Duration

	// Logger receives connection lifecycle and dispatch logs.
	// Default: slog.Default().
	Logger *slog.Logger

	// Dialer opens WebSocket connections. Default: a gorilla/websocket
	// dialer honoring HandshakeTimeout.
	Dialer Dialer
}

// DefaultConfig returns a Config with every tuning field set to its
// default. ServiceURL, LookupKey and ProjectID must still be filled in
// by the caller.
func DefaultConfig() *Config {
	return &Config{
		ReconnectBaseDelay:   DefaultReconnectBaseDelay,
		ReconnectMaxDelay:    DefaultReconnectMaxDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		WriteTimeout:         DefaultWriteTimeout,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		Logger:               slog.Default(),
	}
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WithTarget sets the service URL, lookup key and project ID.
func (c *Config) WithTarget(serviceURL, lookupKey, projectID string) *Config {
	c.ServiceURL = serviceURL
	c.LookupKey = lookupKey
	c.ProjectID = projectID
	return c
}

// WithAutoConnect toggles connecting on first Send.
func (c *Config) WithAutoConnect(auto bool) *Config {
	c.AutoConnect = auto
	return c
}

// WithReconnectPolicy sets the backoff base delay, its cap and the
// attempt budget.
func (c *Config) WithReconnectPolicy(base, max time.Duration, attempts int) *Config {
	c.ReconnectBaseDelay = base
	c.ReconnectMaxDelay = max
	c.MaxReconnectAttempts = attempts
	return c
}

// WithLogger sets the logger.
func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

// WithDialer sets the transport dialer.
func (c *Config) WithDialer(d Dialer) *Config {
	c.Dialer = d
	return c
}

// Validate checks that the required fields are present.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return ErrNoServiceURL
	}
	if c.LookupKey == "" {
		return ErrNoLookupKey
	}
	if c.ProjectID == "" {
		return ErrNoProjectID
	}
	return nil
}

// normalize fills zero-valued tuning fields with their defaults.
func (c *Config) normalize() {
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dialer == nil {
		c.Dialer = &wsDialer{handshakeTimeout: c.HandshakeTimeout}
	}
}
