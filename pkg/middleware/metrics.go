package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentwire-dev/agentwire/pkg/request"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "agentwire").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "agentwire",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus collectors.
type metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestErrors   *prometheus.CounterVec
	messagesSent        *prometheus.CounterVec
	messagesReceived    *prometheus.CounterVec
	callsTotal          *prometheus.CounterVec
	callDuration        prometheus.Histogram
}

// globalMetrics is the singleton instance, created on the first call
// to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

// initMetrics registers the Prometheus collectors.
func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by method and status code",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "code"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"method"}),

		httpRequestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_errors_total",
			Help:        "Total number of HTTP transport errors by type",
			ConstLabels: config.ConstLabels,
		}, []string{"method", "error_type"}),

		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_sent_total",
			Help:        "Total number of channel messages submitted, by send status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_received_total",
			Help:        "Total number of channel messages received, by message type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of agent calls by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Agent call round-trip duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
	}
}

// Prometheus creates middleware that records request metrics.
//
// Metrics collected:
//   - agentwire_http_requests_total: Counter of requests by method and status code
//   - agentwire_http_request_duration_seconds: Histogram of request duration
//   - agentwire_http_request_errors_total: Counter of transport errors by type
//
// The same collectors back the channel-level Record functions
// (RecordMessageSent, RecordMessageReceived, RecordCall).
//
// Example:
//
//	client, err := request.NewClient(serviceURL,
//	    request.WithMiddleware(middleware.Prometheus(
//	        middleware.WithNamespace("myapp"),
//	    )),
//	)
//
//	// Expose the metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) request.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next request.Doer) request.Doer {
		return request.DoerFunc(func(req *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.Do(req)
			m.httpRequestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

			if err != nil {
				m.httpRequestErrors.WithLabelValues(req.Method, categorizeError(err)).Inc()
				m.httpRequestsTotal.WithLabelValues(req.Method, "error").Inc()
				return nil, err
			}
			m.httpRequestsTotal.WithLabelValues(req.Method, strconv.Itoa(resp.StatusCode)).Inc()
			return resp, nil
		})
	}
}

// categorizeError maps a transport error to a low-cardinality label.
func categorizeError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, new(*net.OpError)):
		return "connection"
	default:
		return "transport"
	}
}

// RecordMessageSent records one channel message submission. status is
// the SendStatus string ("sent" or "queued").
func RecordMessageSent(status string) {
	if globalMetrics != nil {
		globalMetrics.messagesSent.WithLabelValues(status).Inc()
	}
}

// RecordMessageReceived records one inbound channel message.
func RecordMessageReceived(msgType string) {
	if globalMetrics != nil {
		globalMetrics.messagesReceived.WithLabelValues(msgType).Inc()
	}
}

// RecordCall records one agent call outcome and its round-trip time.
func RecordCall(status string, seconds float64) {
	if globalMetrics != nil {
		globalMetrics.callsTotal.WithLabelValues(status).Inc()
		globalMetrics.callDuration.Observe(seconds)
	}
}

// Collector exposes the registered collectors for custom inspection.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestErrors   *prometheus.CounterVec
	messagesSent        *prometheus.CounterVec
	messagesReceived    *prometheus.CounterVec
	callsTotal          *prometheus.CounterVec
	callDuration        prometheus.Histogram
}

// GetMetrics returns the global collectors, or nil if the Prometheus
// middleware has not been initialized.
func GetMetrics() *Collector {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		return nil
	}
	return &Collector{
		httpRequestsTotal:   globalMetrics.httpRequestsTotal,
		httpRequestDuration: globalMetrics.httpRequestDuration,
		httpRequestErrors:   globalMetrics.httpRequestErrors,
		messagesSent:        globalMetrics.messagesSent,
		messagesReceived:    globalMetrics.messagesReceived,
		callsTotal:          globalMetrics.callsTotal,
		callDuration:        globalMetrics.callDuration,
	}
}
