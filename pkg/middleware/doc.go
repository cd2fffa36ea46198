// Package middleware provides observability middleware for the
// request pipeline: Prometheus metrics and OpenTelemetry tracing.
//
// Both constructors return a request.Middleware and are wired when the
// client is built:
//
//	client, err := request.NewClient(serviceURL,
//	    request.WithMiddleware(
//	        middleware.Prometheus(middleware.WithNamespace("myapp")),
//	        middleware.OpenTelemetry(),
//	    ),
//	)
//
// The Prometheus middleware registers its collectors once per process;
// expose them with promhttp.Handler. The OpenTelemetry middleware uses
// the global tracer provider, so configure that in main() before
// issuing requests.
package middleware
