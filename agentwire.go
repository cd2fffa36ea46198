// Package agentwire is the client SDK for the AgentWire realtime
// messaging service.
//
// A Client speaks the binary frame protocol over one WebSocket
// connection to an agent, queues messages while offline, and pairs
// Call messages with their replies:
//
//	cfg, err := agentwire.LoadConfig(".")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg.Agent = "support-bot"
//
//	client, err := agentwire.NewClient(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Disconnect()
//
//	out, err := client.Call(ctx, "summarize", map[string]string{"text": doc})
//
// The underlying building blocks live in pkg/protocol (wire format),
// pkg/session (connection lifecycle) and pkg/request (REST
// collaborator) for callers that need them directly.
package agentwire

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/agentwire-dev/agentwire/pkg/middleware"
	"github.com/agentwire-dev/agentwire/pkg/protocol"
	"github.com/agentwire-dev/agentwire/pkg/request"
	"github.com/agentwire-dev/agentwire/pkg/session"
)

// MessageHandler receives inbound messages that are not replies to a
// pending Call, one at a time in completion order.
type MessageHandler = session.MessageHandler

// SendStatus reports how Send disposed of a message.
type SendStatus = session.SendStatus

// Send outcomes, re-exported from pkg/session.
const (
	StatusQueued = session.StatusQueued
	StatusSent   = session.StatusSent
)

// Option configures a Client beyond what the file config carries.
type Option func(*clientOptions)

type clientOptions struct {
	logger     *slog.Logger
	dialer     session.Dialer
	middleware []request.Middleware
	httpClient *http.Client
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithDialer replaces the WebSocket dialer. Useful for tests and
// custom transports.
func WithDialer(d session.Dialer) Option {
	return func(o *clientOptions) { o.dialer = d }
}

// WithRequestMiddleware appends middleware to the REST pipeline, e.g.
// middleware.Prometheus() or middleware.OpenTelemetry().
func WithRequestMiddleware(mw ...request.Middleware) Option {
	return func(o *clientOptions) { o.middleware = append(o.middleware, mw...) }
}

// WithHTTPClient replaces the HTTP client used for REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// Client is one agent connection plus the service's REST surface. All
// methods are safe for concurrent use.
type Client struct {
	config  *Config
	logger  *slog.Logger
	session *session.Session
	rest    *request.Client

	mu      sync.Mutex
	pending map[string]chan callResult
	handler MessageHandler
}

// NewClient builds a Client from cfg. The config must name an agent;
// nothing is dialed until Connect or an auto-connecting Send.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("agentwire: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Agent == "" {
		return nil, &ConfigError{Field: "agent", Err: errMissing}
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	sessCfg, err := cfg.sessionConfig()
	if err != nil {
		return nil, err
	}
	sessCfg.Logger = o.logger
	if o.dialer != nil {
		sessCfg.Dialer = o.dialer
	}
	sess, err := session.New(sessCfg)
	if err != nil {
		return nil, err
	}

	restOpts := []request.Option{request.WithLogger(o.logger)}
	if cfg.APIKey != "" {
		restOpts = append(restOpts, request.WithHeader("Authorization", "Bearer "+cfg.APIKey))
	}
	if o.httpClient != nil {
		restOpts = append(restOpts, request.WithHTTPClient(o.httpClient))
	}
	for _, mw := range o.middleware {
		restOpts = append(restOpts, request.WithMiddleware(mw))
	}
	rest, err := request.NewClient(restBaseURL(cfg.ServiceURL), restOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  cfg,
		logger:  o.logger.With("agent", cfg.Agent),
		session: sess,
		rest:    rest,
		pending: make(map[string]chan callResult),
	}
	sess.OnMessage(c.dispatch)
	return c, nil
}

// Connect opens the realtime connection, joining an attempt already in
// flight. It returns nil when already connected.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Disconnect closes the connection cleanly and suppresses reconnects
// until the next Connect. Queued messages are kept; pending Calls keep
// waiting and settle through their contexts.
func (c *Client) Disconnect() {
	c.session.Disconnect()
}

// Send transmits or queues a one-way message.
func (c *Client) Send(msg *protocol.Message) (SendStatus, error) {
	status, err := c.session.Send(msg)
	if err != nil {
		middleware.RecordMessageSent("error")
		return status, err
	}
	middleware.RecordMessageSent(statusLabel(status))
	return status, nil
}

// OnMessage registers the handler for uncorrelated inbound messages.
// Passing nil drops them.
func (c *Client) OnMessage(h MessageHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Connected reports whether the connection is open.
func (c *Client) Connected() bool { return c.session.Connected() }

// Connecting reports whether a dial is in flight.
func (c *Client) Connecting() bool { return c.session.Connecting() }

// Reconnecting reports whether the client is waiting out a backoff
// delay.
func (c *Client) Reconnecting() bool { return c.session.Reconnecting() }

// State returns the connection lifecycle state.
func (c *Client) State() session.State { return c.session.State() }

// QueueLen returns how many outbound messages are waiting for the
// connection to open.
func (c *Client) QueueLen() int { return c.session.QueueLen() }

// Endpoint returns the WebSocket URL the client dials.
func (c *Client) Endpoint() string { return c.session.Endpoint() }

// AgentInfo describes an agent as reported by the service.
type AgentInfo struct {
	LookupKey string `json:"lookupKey"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name,omitempty"`
	Online    bool   `json:"online"`
}

// LookupAgent fetches agent metadata over REST.
func (c *Client) LookupAgent(ctx context.Context, lookupKey string) (*AgentInfo, error) {
	resp, err := c.rest.Get("/api/agents/" + lookupKey).
		Param("pid", c.config.ProjectID).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	var info AgentInfo
	if err := resp.JSON(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health checks the service's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.rest.Get("/healthz").Do(ctx)
	if err != nil {
		return err
	}
	resp.Stream().Close()
	return nil
}

func statusLabel(status SendStatus) string {
	switch status {
	case StatusSent:
		return "sent"
	case StatusQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// restBaseURL maps a ws service URL onto the REST scheme, the inverse
// of the mapping the live endpoint applies.
func restBaseURL(serviceURL string) string {
	u, err := url.Parse(serviceURL)
	if err != nil {
		return serviceURL
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return u.String()
}
