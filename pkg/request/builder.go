package request

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxErrorBody caps how much of a non-2xx response body is captured
// into a StatusError.
const maxErrorBody = 8 << 10

// Builder accumulates one request. Methods return the builder for
// chaining; construction problems are deferred and surface from Do.
type Builder struct {
	client      *Client
	method      string
	path        string
	headers     http.Header
	params      url.Values
	body        io.Reader
	contentType string
	err         error
}

// Header sets a request header.
func (b *Builder) Header(key, value string) *Builder {
	b.headers.Set(key, value)
	return b
}

// Param adds a query parameter.
func (b *Builder) Param(key, value string) *Builder {
	b.params.Add(key, value)
	return b
}

// JSON sets a JSON request body.
func (b *Builder) JSON(v any) *Builder {
	data, err := json.Marshal(v)
	if err != nil {
		b.err = &BuildError{Stage: "marshal JSON body", Err: err}
		return b
	}
	b.body = bytes.NewReader(data)
	b.contentType = "application/json"
	return b
}

// Form sets a URL-encoded form body.
func (b *Builder) Form(values url.Values) *Builder {
	b.body = strings.NewReader(values.Encode())
	b.contentType = "application/x-www-form-urlencoded"
	return b
}

// Body sets a raw request body with an explicit content type.
func (b *Builder) Body(contentType string, r io.Reader) *Builder {
	b.body = r
	b.contentType = contentType
	return b
}

// Do executes the request through the client's middleware chain. A
// non-2xx response is returned as a *StatusError carrying the start of
// the response body.
func (b *Builder) Do(ctx context.Context) (*Response, error) {
	if b.err != nil {
		return nil, b.err
	}

	u := b.client.baseURL.JoinPath(b.path)
	if len(b.params) > 0 {
		q := u.Query()
		for key, values := range b.params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, b.method, u.String(), b.body)
	if err != nil {
		return nil, &BuildError{Stage: fmt.Sprintf("build %s %s", b.method, b.path), Err: err}
	}
	for key, values := range b.client.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, values := range b.headers {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}
	if b.contentType != "" {
		req.Header.Set("Content-Type", b.contentType)
	}

	b.client.logger.Debug("http request", "method", b.method, "url", u.String())
	resp, err := b.client.chain().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %s %s: %w", b.method, b.path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{
			Method:     b.method,
			Path:       b.path,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}
	return &Response{raw: resp}, nil
}
