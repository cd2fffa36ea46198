package agentwire

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentwire-dev/agentwire/pkg/middleware"
	"github.com/agentwire-dev/agentwire/pkg/protocol"
)

// AgentError is a failure reported by the remote agent in reply to a
// Call.
type AgentError struct {
	Name    string
	Message string
	Stack   string
}

func (e *AgentError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("agentwire: agent error %s: %s", e.Name, e.Message)
	}
	return "agentwire: agent error: " + e.Message
}

// callResult settles one pending Call.
type callResult struct {
	output json.RawMessage
	err    error
}

// Call invokes target on the agent and waits for its reply. input is
// marshaled as the call's argument; the reply's output is returned
// raw. A Call while offline queues like any Send and waits for the
// connection, so ctx should carry a deadline. Remote failures surface
// as *AgentError.
func (c *Client) Call(ctx context.Context, target string, input any) (json.RawMessage, error) {
	requestID := newRequestID()
	msg, err := protocol.NewCall(requestID, target, input)
	if err != nil {
		return nil, err
	}

	ch := make(chan callResult, 1)
	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()

	start := time.Now()
	if _, err := c.session.Send(msg); err != nil {
		c.unregister(requestID)
		middleware.RecordCall("error", time.Since(start).Seconds())
		return nil, err
	}

	select {
	case r := <-ch:
		return c.settle(r, start)
	case <-ctx.Done():
		c.unregister(requestID)
		// The reply may have landed while we were cancelling.
		select {
		case r := <-ch:
			return c.settle(r, start)
		default:
		}
		middleware.RecordCall("canceled", time.Since(start).Seconds())
		return nil, ctx.Err()
	}
}

func (c *Client) settle(r callResult, start time.Time) (json.RawMessage, error) {
	if r.err != nil {
		middleware.RecordCall("error", time.Since(start).Seconds())
		return nil, r.err
	}
	middleware.RecordCall("ok", time.Since(start).Seconds())
	return r.output, nil
}

// dispatch is the session's message handler. Replies that match a
// pending Call settle it; everything else goes to the user handler.
func (c *Client) dispatch(msg *protocol.Message) error {
	middleware.RecordMessageReceived(msg.Type.String())

	switch msg.Type {
	case protocol.TypeResponse:
		var p protocol.ResponsePayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("agentwire: decode response payload: %w", err)
		}
		if c.resolve(p.RequestID, callResult{output: p.Output}) {
			return nil
		}
	case protocol.TypeError:
		var p protocol.ErrorPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			return fmt.Errorf("agentwire: decode error payload: %w", err)
		}
		remote := &AgentError{
			Name:    p.Error.Name,
			Message: p.Error.Message,
			Stack:   p.Error.Stack,
		}
		if p.RequestID != "" && c.resolve(p.RequestID, callResult{err: remote}) {
			return nil
		}
	}

	c.mu.Lock()
	handler := c.handler
	c.mu.Unlock()
	if handler == nil {
		c.logger.Debug("unhandled message", "message_id", msg.ID, "type", msg.Type)
		return nil
	}
	return handler(msg)
}

// resolve settles the pending call registered under requestID, if any.
func (c *Client) resolve(requestID string, r callResult) bool {
	c.mu.Lock()
	ch, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- r
	return true
}

func (c *Client) unregister(requestID string) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

// newRequestID generates a cryptographically random call ID.
func newRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
