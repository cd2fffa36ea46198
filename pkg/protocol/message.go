package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies the semantic type of a message.
type MessageType uint8

// Built-in message types. Codes 5-99 are unassigned, 100-249 are
// available for application-defined messages, and 250-255 are reserved
// for future protocol extensions.
const (
	TypeError    MessageType = 1 // Reports a remote failure
	TypeAck      MessageType = 2 // Acknowledges receipt of a message
	TypeCall     MessageType = 3 // Invokes a remote operation
	TypeResponse MessageType = 4 // Answers a Call

	// TypeUser is the first code available for application messages.
	TypeUser MessageType = 100

	// TypeReserved is the first code reserved for protocol extensions.
	TypeReserved MessageType = 250
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	switch {
	case mt == TypeError:
		return "Error"
	case mt == TypeAck:
		return "Ack"
	case mt == TypeCall:
		return "Call"
	case mt == TypeResponse:
		return "Response"
	case mt >= TypeReserved:
		return "Reserved"
	case mt >= TypeUser:
		return "User"
	default:
		return "Unknown"
	}
}

// Message errors.
var (
	ErrNoPayload      = errors.New("protocol: message has no payload")
	ErrInvalidPayload = errors.New("protocol: payload is not valid JSON")
)

// Message is a single protocol message.
//
// ID is unique per direction for the lifetime of a connection; zero
// means "not yet assigned" and is filled in by the frame encoder.
// Payload holds the message body as JSON, or nil when the message
// carries none.
type Message struct {
	ID      uint32
	Type    MessageType
	Payload json.RawMessage
}

// NewMessage creates a message of the given type, marshaling payload
// to JSON. A nil payload produces a message without a body.
func NewMessage(mtype MessageType, payload any) (*Message, error) {
	m := &Message{Type: mtype}
	if payload == nil {
		return m, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal payload: %w", err)
	}
	m.Payload = data
	return m, nil
}

// UnmarshalPayload unmarshals the message body into v.
// It returns ErrNoPayload for messages without a body.
func (m *Message) UnmarshalPayload(v any) error {
	if len(m.Payload) == 0 {
		return ErrNoPayload
	}
	return json.Unmarshal(m.Payload, v)
}

// CallPayload is the body of a TypeCall message.
type CallPayload struct {
	RequestID  string          `json:"requestId"`
	Input      json.RawMessage `json:"input,omitempty"`
	Resumption json.RawMessage `json:"resumption,omitempty"`
	Target     string          `json:"target,omitempty"`
}

// ResponsePayload is the body of a TypeResponse message.
type ResponsePayload struct {
	RequestID string          `json:"requestId"`
	Output    json.RawMessage `json:"output,omitempty"`
}

// AckPayload is the body of a TypeAck message.
type AckPayload struct {
	OriginalID uint32 `json:"originalId,omitempty"`
}

// ErrorDetail describes a remote failure.
type ErrorDetail struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ErrorPayload is the body of a TypeError message. RequestID is set
// when the error answers a Call; OriginalID when it concerns an
// earlier message.
type ErrorPayload struct {
	RequestID  string      `json:"requestId,omitempty"`
	OriginalID uint32      `json:"originalId,omitempty"`
	Error      ErrorDetail `json:"error"`
}

// NewCall creates a Call message. target names the remote operation
// and may be empty when the endpoint has a single entry point. input
// may be nil for calls without arguments.
func NewCall(requestID, target string, input any) (*Message, error) {
	p := CallPayload{RequestID: requestID, Target: target}
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal call input: %w", err)
		}
		p.Input = data
	}
	return NewMessage(TypeCall, p)
}

// NewResponse creates a Response message answering requestID. output
// may be nil for responses without a result.
func NewResponse(requestID string, output any) (*Message, error) {
	p := ResponsePayload{RequestID: requestID}
	if output != nil {
		data, err := json.Marshal(output)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal response output: %w", err)
		}
		p.Output = data
	}
	return NewMessage(TypeResponse, p)
}

// NewAck creates an Ack message acknowledging originalID.
func NewAck(originalID uint32) *Message {
	m, _ := NewMessage(TypeAck, AckPayload{OriginalID: originalID})
	return m
}

// NewErrorMessage creates an Error message carrying p.
func NewErrorMessage(p ErrorPayload) (*Message, error) {
	return NewMessage(TypeError, p)
}
