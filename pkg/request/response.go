package request

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Response wraps a successful HTTP response. Exactly one of the body
// accessors may be called; JSON and Bytes close the body, Stream hands
// ownership to the caller.
type Response struct {
	raw *http.Response
}

// StatusCode returns the HTTP status code.
func (r *Response) StatusCode() int {
	return r.raw.StatusCode
}

// Header returns the response headers.
func (r *Response) Header() http.Header {
	return r.raw.Header
}

// JSON decodes the response body into v and closes it.
func (r *Response) JSON(v any) error {
	defer r.raw.Body.Close()
	if err := json.NewDecoder(r.raw.Body).Decode(v); err != nil {
		return fmt.Errorf("request: decode response: %w", err)
	}
	return nil
}

// Bytes reads the whole response body and closes it.
func (r *Response) Bytes() ([]byte, error) {
	defer r.raw.Body.Close()
	data, err := io.ReadAll(r.raw.Body)
	if err != nil {
		return nil, fmt.Errorf("request: read response: %w", err)
	}
	return data, nil
}

// Stream returns the raw response body for incremental reads. The
// caller must close it.
func (r *Response) Stream() io.ReadCloser {
	return r.raw.Body
}
