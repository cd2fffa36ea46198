package request

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a whole request including the response body
// read, unless a custom http.Client overrides it.
const DefaultTimeout = 30 * time.Second

// Doer executes one HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do implements Doer.
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware decorates the execution path of every request made
// through a Client. The first middleware registered is the outermost.
type Middleware func(next Doer) Doer

// Client issues HTTP requests against one service base URL.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
	middleware []Middleware
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHeader adds a header to every request, for example an
// Authorization header.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithMiddleware appends middleware to the execution chain.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithLogger sets the logger used for request debug logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a Client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &BuildError{Stage: "parse base URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &BuildError{Stage: "parse base URL", Err: errors.New("scheme must be http or https")}
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get starts a GET request builder.
func (c *Client) Get(path string) *Builder {
	return c.NewRequest(http.MethodGet, path)
}

// Post starts a POST request builder.
func (c *Client) Post(path string) *Builder {
	return c.NewRequest(http.MethodPost, path)
}

// Put starts a PUT request builder.
func (c *Client) Put(path string) *Builder {
	return c.NewRequest(http.MethodPut, path)
}

// Patch starts a PATCH request builder.
func (c *Client) Patch(path string) *Builder {
	return c.NewRequest(http.MethodPatch, path)
}

// Delete starts a DELETE request builder.
func (c *Client) Delete(path string) *Builder {
	return c.NewRequest(http.MethodDelete, path)
}

// NewRequest starts a builder for an arbitrary method.
func (c *Client) NewRequest(method, path string) *Builder {
	return &Builder{
		client:  c,
		method:  method,
		path:    path,
		headers: make(http.Header),
		params:  make(url.Values),
	}
}

// chain wraps the base Doer with the registered middleware, outermost
// first.
func (c *Client) chain() Doer {
	var d Doer = c.httpClient
	for i := len(c.middleware) - 1; i >= 0; i-- {
		d = c.middleware[i](d)
	}
	return d
}
