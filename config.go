package agentwire

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentwire-dev/agentwire/pkg/session"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "agentwire.json"

	envServiceURL = "AGENTWIRE_SERVICE_URL"
	envProjectID  = "AGENTWIRE_PROJECT_ID"
	envAPIKey     = "AGENTWIRE_API_KEY"
	envAgent      = "AGENTWIRE_AGENT"
)

// Config is the client configuration, loaded from agentwire.json and
// the AGENTWIRE_* environment variables.
type Config struct {
	// ServiceURL is the base URL of the messaging service,
	// e.g. "https://agents.example.com".
	ServiceURL string `json:"serviceUrl,omitempty"`

	// ProjectID identifies the project the client belongs to. It is
	// sent as the pid query parameter on the live endpoint.
	ProjectID string `json:"projectId,omitempty"`

	// APIKey authenticates REST calls against the service. Optional;
	// when set it is sent as a bearer token.
	APIKey string `json:"apiKey,omitempty"`

	// Agent is the lookup key of the agent to connect to.
	Agent string `json:"agent,omitempty"`

	// Session tunes the realtime connection.
	Session SessionConfig `json:"session,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// SessionConfig tunes the realtime connection. Durations are strings
// in time.ParseDuration form, e.g. "30s". Zero values keep the
// session package defaults.
type SessionConfig struct {
	// AutoConnect makes Send open the connection on demand.
	AutoConnect bool `json:"autoConnect,omitempty"`

	// ReconnectBaseDelay is the first backoff delay, e.g. "1s".
	ReconnectBaseDelay string `json:"reconnectBaseDelay,omitempty"`

	// ReconnectMaxDelay caps the backoff delay, e.g. "30s".
	ReconnectMaxDelay string `json:"reconnectMaxDelay,omitempty"`

	// MaxReconnectAttempts bounds consecutive failed dials.
	MaxReconnectAttempts int `json:"maxReconnectAttempts,omitempty"`

	// WriteTimeout bounds each frame write, e.g. "10s".
	WriteTimeout string `json:"writeTimeout,omitempty"`

	// HandshakeTimeout bounds each dial, e.g. "10s".
	HandshakeTimeout string `json:"handshakeTimeout,omitempty"`
}

// ConfigError reports an invalid or missing configuration field.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("agentwire: config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

var errMissing = errors.New("missing")

// DefaultConfig returns an empty configuration. All tuning fields
// default to the session package values when left zero.
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig reads agentwire.json from dir, then applies AGENTWIRE_*
// environment overrides. A missing file is not an error; environment
// variables alone can configure a client.
func LoadConfig(dir string) (*Config, error) {
	return LoadConfigFile(filepath.Join(dir, ConfigFileName))
}

// LoadConfigFile reads configuration from the given path, then applies
// AGENTWIRE_* environment overrides.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("agentwire: parse %s: %w", path, err)
		}
		cfg.configPath = path
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("agentwire: read config: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// ConfigExists reports whether dir contains an agentwire.json.
func ConfigExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// Path returns the path the config was loaded from, or "" when it came
// from defaults and environment only.
func (c *Config) Path() string { return c.configPath }

// applyEnv overlays AGENTWIRE_* environment variables. Set variables
// win over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv(envServiceURL); v != "" {
		c.ServiceURL = v
	}
	if v := os.Getenv(envProjectID); v != "" {
		c.ProjectID = v
	}
	if v := os.Getenv(envAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(envAgent); v != "" {
		c.Agent = v
	}
}

// Validate checks the fields every client needs. Agent is checked by
// NewClient, not here, so REST-oriented tooling can validate a config
// without one.
func (c *Config) Validate() error {
	if c.ServiceURL == "" {
		return &ConfigError{Field: "serviceUrl", Err: errMissing}
	}
	if c.ProjectID == "" {
		return &ConfigError{Field: "projectId", Err: errMissing}
	}
	if c.Session.MaxReconnectAttempts < 0 {
		return &ConfigError{Field: "session.maxReconnectAttempts", Err: errors.New("must not be negative")}
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"session.reconnectBaseDelay", c.Session.ReconnectBaseDelay},
		{"session.reconnectMaxDelay", c.Session.ReconnectMaxDelay},
		{"session.writeTimeout", c.Session.WriteTimeout},
		{"session.handshakeTimeout", c.Session.HandshakeTimeout},
	} {
		if _, err := parseDuration(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// sessionConfig translates the file representation into the session
// package's config, leaving unset fields at their defaults.
func (c *Config) sessionConfig() (*session.Config, error) {
	sc := session.DefaultConfig().
		WithTarget(c.ServiceURL, c.Agent, c.ProjectID).
		WithAutoConnect(c.Session.AutoConnect)
	if d, err := parseDuration("session.reconnectBaseDelay", c.Session.ReconnectBaseDelay); err != nil {
		return nil, err
	} else if d != 0 {
		sc.ReconnectBaseDelay = d
	}
	if d, err := parseDuration("session.reconnectMaxDelay", c.Session.ReconnectMaxDelay); err != nil {
		return nil, err
	} else if d != 0 {
		sc.ReconnectMaxDelay = d
	}
	if c.Session.MaxReconnectAttempts > 0 {
		sc.MaxReconnectAttempts = c.Session.MaxReconnectAttempts
	}
	if d, err := parseDuration("session.writeTimeout", c.Session.WriteTimeout); err != nil {
		return nil, err
	} else if d != 0 {
		sc.WriteTimeout = d
	}
	if d, err := parseDuration("session.handshakeTimeout", c.Session.HandshakeTimeout); err != nil {
		return nil, err
	} else if d != 0 {
		sc.HandshakeTimeout = d
	}
	return sc, nil
}

// parseDuration parses a config duration string. Empty means unset.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ConfigError{Field: field, Err: err}
	}
	if d < 0 {
		return 0, &ConfigError{Field: field, Err: errors.New("must not be negative")}
	}
	return d, nil
}
