package protocol

import (
	"encoding/json"
)

// FrameEncoder turns messages into wire frames. It owns the message ID
// counter for one direction of a connection: a message with an
// unassigned (zero) ID receives the counter's next value when encoded.
//
// FrameEncoder is not safe for concurrent use; callers serialize
// access the same way they serialize writes to the transport.
type FrameEncoder struct {
	nextID uint32
}

// NewFrameEncoder creates a frame encoder whose ID counter starts at 1.
func NewFrameEncoder() *FrameEncoder {
	return &FrameEncoder{nextID: 1}
}

// Encode converts a message into one or more frames ready for
// transport. The assigned message ID is written back to msg so callers
// can correlate replies.
//
// Bodies up to MaxPayloadSize produce a single frame carrying both
// FlagFirst and FlagLast. Larger bodies are split into consecutive
// chunks of at most MaxPayloadSize bytes, all sharing the message's ID
// and type: the first frame carries FlagFirst, the last FlagLast, and
// middle frames no flags. Frames reference msg's payload bytes rather
// than copying them.
//
// Encode returns ErrInvalidPayload when the body is not valid JSON.
func (fe *FrameEncoder) Encode(msg *Message) ([]Frame, error) {
	if len(msg.Payload) > 0 && !json.Valid(msg.Payload) {
		return nil, ErrInvalidPayload
	}
	if msg.ID == 0 {
		msg.ID = fe.nextID
		fe.nextID++
	}

	payload := msg.Payload
	if len(payload) <= MaxPayloadSize {
		return []Frame{{
			Version:   ProtocolVersion,
			Flags:     FlagFirst | FlagLast,
			MessageID: msg.ID,
			Type:      msg.Type,
			Payload:   payload,
		}}, nil
	}

	frames := make([]Frame, 0, (len(payload)+MaxPayloadSize-1)/MaxPayloadSize)
	for off := 0; off < len(payload); off += MaxPayloadSize {
		end := off + MaxPayloadSize
		if end > len(payload) {
			end = len(payload)
		}
		var flags FrameFlags
		if off == 0 {
			flags |= FlagFirst
		}
		if end == len(payload) {
			flags |= FlagLast
		}
		frames = append(frames, Frame{
			Version:   ProtocolVersion,
			Flags:     flags,
			MessageID: msg.ID,
			Type:      msg.Type,
			Payload:   payload[off:end],
		})
	}
	return frames, nil
}

// EncodeBytes encodes a message and concatenates its frames into a
// single byte slice.
func (fe *FrameEncoder) EncodeBytes(msg *Message) ([]byte, error) {
	frames, err := fe.Encode(msg)
	if err != nil {
		return nil, err
	}
	e := NewEncoderWithCap(len(msg.Payload) + len(frames)*HeaderSize)
	for i := range frames {
		frames[i].EncodeTo(e)
	}
	return e.Bytes(), nil
}

// Reset returns the ID counter to its initial state. Call it when the
// underlying connection is replaced so IDs stay unique per connection.
func (fe *FrameEncoder) Reset() {
	fe.nextID = 1
}
