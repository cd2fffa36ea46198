package middleware

import (
	"errors"
	"net/http"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agentwire-dev/agentwire/pkg/request"
)

func TestOpenTelemetryPassThrough(t *testing.T) {
	mw := OpenTelemetry()

	var gotCtx bool
	inner := stubResponse(http.StatusOK)
	doer := mw(request.DoerFunc(func(req *http.Request) (*http.Response, error) {
		gotCtx = req.Context() != nil
		return inner.Do(req)
	}))

	resp, err := doer.Do(newTestRequest(t, http.MethodGet))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !gotCtx {
		t.Error("expected request to carry a context")
	}
}

func TestOpenTelemetryErrorPropagates(t *testing.T) {
	mw := OpenTelemetry(WithTracerName("agentwire-test"))

	boom := errors.New("connection reset")
	_, err := mw(stubError(boom)).Do(newTestRequest(t, http.MethodPost))
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}

func TestOpenTelemetryServerErrorStatus(t *testing.T) {
	mw := OpenTelemetry()

	resp, err := mw(stubResponse(http.StatusInternalServerError)).Do(newTestRequest(t, http.MethodGet))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

func TestOpenTelemetryFilterSkipsTracing(t *testing.T) {
	mw := OpenTelemetry(WithRequestFilter(func(req *http.Request) bool {
		return req.URL.Path != "/healthz"
	}))

	var called bool
	doer := mw(request.DoerFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return stubResponse(http.StatusOK).Do(req)
	}))

	req, err := http.NewRequest(http.MethodGet, "https://agents.example.com/healthz", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := doer.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if !called {
		t.Error("filtered request never reached the inner doer")
	}
}

func TestOpenTelemetryAttributeExtractor(t *testing.T) {
	var extracted bool
	mw := OpenTelemetry(WithAttributeExtractor(func(req *http.Request) []attribute.KeyValue {
		extracted = true
		return []attribute.KeyValue{attribute.String("agent.lookup_key", "support-bot")}
	}))

	if _, err := mw(stubResponse(http.StatusOK)).Do(newTestRequest(t, http.MethodGet)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !extracted {
		t.Error("attribute extractor was not invoked")
	}
}
