// Package protocol implements the binary wire protocol spoken between
// agentwire clients and agent endpoints.
//
// The protocol moves JSON message bodies over a binary framing layer.
// Framing keeps per-message overhead at a fixed ten bytes, allows
// bodies larger than a single frame, and lets a receiver reassemble
// messages from transport chunks of any size.
//
// # Design Goals
//
//   - Minimal overhead: fixed 10-byte header per frame
//   - Fast encoding/decoding: no reflection, direct byte manipulation
//   - Large bodies: transparent fragmentation across frames
//   - Stream tolerant: decoding never depends on chunk boundaries
//   - Extensible: version byte, reserved type codes
//
// # Wire Format
//
// Every frame starts with a 10-byte header, big-endian throughout:
//
//	┌──────────┬───────────┬─────────────┬──────────┬────────────────┐
//	│ Version  │ Flags     │ Message ID  │ Type     │ Payload Length │
//	│ (1 byte) │ (2 bytes) │ (4 bytes)   │ (1 byte) │ (2 bytes)      │
//	└──────────┴───────────┴─────────────┴──────────┴────────────────┘
//
// The payload length caps a single frame's body at 65535 bytes. A
// message whose body fits is sent as one frame carrying both FlagFirst
// and FlagLast; a larger body is split into consecutive frames that
// share the message's ID and type, with FlagFirst on the first frame
// and FlagLast on the last.
//
// # Messages
//
// A message is an ID, a type code, and an optional JSON body. IDs are
// assigned by the sending side's FrameEncoder and are unique per
// direction for the lifetime of a connection. Types 1-4 are the
// built-in Error, Ack, Call, and Response messages; 100-249 are free
// for applications; 250-255 are reserved.
//
// # Usage Example
//
//	// Sender: turn a message into wire bytes.
//	enc := NewFrameEncoder()
//	msg, _ := NewCall("req-1", "search", map[string]any{"q": "go"})
//	data, err := enc.EncodeBytes(msg)
//	if err != nil {
//	    // Handle error
//	}
//
//	// Receiver: feed transport chunks, drain completed messages.
//	dec := NewStreamDecoder()
//	if err := dec.Push(data); err != nil {
//	    // Malformed frames were skipped; the decoder is still usable.
//	}
//	for dec.HasMessages() {
//	    m := dec.Poll()
//	    // Dispatch m.
//	}
//
// # File Structure
//
// The package is organized as follows:
//
//   - encoder.go: Binary encoder
//   - decoder.go: Binary decoder
//   - frame.go: Frame layout and header codec
//   - message.go: Message types and payload shapes
//   - framer.go: Message to frame encoding, fragmentation
//   - stream.go: Chunk accumulation and message reassembly
package protocol
