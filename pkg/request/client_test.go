package request

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(srv.URL, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, srv
}

func TestGetJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/api/agents/support-bot" {
			t.Errorf("path = %s, want /api/agents/support-bot", r.URL.Path)
		}
		if got := r.URL.Query().Get("pid"); got != "proj-1" {
			t.Errorf("pid = %q, want proj-1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"lookupKey":"support-bot","status":"online"}`)
	})

	resp, err := c.Get("/api/agents/support-bot").Param("pid", "proj-1").Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var out struct {
		LookupKey string `json:"lookupKey"`
		Status    string `json:"status"`
	}
	if err := resp.JSON(&out); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if out.LookupKey != "support-bot" || out.Status != "online" {
		t.Errorf("decoded %+v", out)
	}
}

func TestPostJSONBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		body, _ := io.ReadAll(r.Body)
		var in map[string]string
		if err := json.Unmarshal(body, &in); err != nil {
			t.Errorf("body not JSON: %v", err)
		}
		if in["name"] != "demo" {
			t.Errorf("body = %s", body)
		}
		w.WriteHeader(http.StatusCreated)
	})

	resp, err := c.Post("/api/projects").JSON(map[string]string{"name": "demo"}).Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got := resp.StatusCode(); got != http.StatusCreated {
		t.Errorf("StatusCode() = %d, want %d", got, http.StatusCreated)
	}
	resp.Stream().Close()
}

func TestFormBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if got := r.PostForm.Get("key"); got != "value with spaces" {
			t.Errorf("key = %q", got)
		}
	})

	_, err := c.Post("/submit").Form(url.Values{"key": {"value with spaces"}}).Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestRawBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "text/plain" {
			t.Errorf("Content-Type = %q, want text/plain", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "hello" {
			t.Errorf("body = %q, want hello", body)
		}
	})

	_, err := c.Put("/raw").Body("text/plain", strings.NewReader("hello")).Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestDefaultAndRequestHeaders(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Request-Source"); got != "test" {
			t.Errorf("X-Request-Source = %q", got)
		}
	}, WithHeader("Authorization", "Bearer token-1"))

	_, err := c.Get("/").Header("X-Request-Source", "test").Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
}

func TestStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"no such agent"}`, http.StatusNotFound)
	})

	_, err := c.Get("/api/agents/ghost").Do(context.Background())
	if err == nil {
		t.Fatal("Do succeeded, want error")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %T, want *StatusError", err)
	}
	if se.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", se.StatusCode)
	}
	if !strings.Contains(string(se.Body), "no such agent") {
		t.Errorf("Body = %q, want captured error body", se.Body)
	}
	if !IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus(404) = false, want true")
	}
	if IsStatus(err, http.StatusForbidden) {
		t.Error("IsStatus(403) = true, want false")
	}
}

func TestMiddlewareOrderAndInjection(t *testing.T) {
	var order []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Injected"); got != "yes" {
			t.Errorf("X-Injected = %q, want yes", got)
		}
	},
		WithMiddleware(func(next Doer) Doer {
			return DoerFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, "outer")
				return next.Do(req)
			})
		}),
		WithMiddleware(func(next Doer) Doer {
			return DoerFunc(func(req *http.Request) (*http.Response, error) {
				order = append(order, "inner")
				req.Header.Set("X-Injected", "yes")
				return next.Do(req)
			})
		}),
	)

	_, err := c.Get("/").Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(order) != 2 || order[0] != "outer" || order[1] != "inner" {
		t.Errorf("middleware order = %v, want [outer inner]", order)
	}
}

func TestJSONMarshalErrorDeferred(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached the server despite a body error")
	})

	_, err := c.Post("/").JSON(func() {}).Do(context.Background())
	if err == nil {
		t.Fatal("Do succeeded, want marshal error")
	}
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("error %T, want *BuildError", err)
	}
}

func TestBytesAndStream(t *testing.T) {
	payload := []byte{0x01, 0x02, 0xff, 0x00, 0x7f}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
	})

	resp, err := c.Get("/blob").Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	data, err := resp.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("Bytes() = %v, want %v", data, payload)
	}

	resp, err = c.Get("/blob").Do(context.Background())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	stream := resp.Stream()
	defer stream.Close()
	data, err = io.ReadAll(stream)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("Stream read = %v, want %v", data, payload)
	}
}

func TestBaseURLPathJoin(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/api/v1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.Get("/agents/bot").Do(context.Background()); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotPath != "/api/v1/agents/bot" {
		t.Errorf("path = %q, want /api/v1/agents/bot", gotPath)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("ftp://example.com"); err == nil {
		t.Error("NewClient(ftp) succeeded, want error")
	}
	if _, err := NewClient("://bad"); err == nil {
		t.Error("NewClient(malformed) succeeded, want error")
	}
}
