package protocol

import (
	"errors"
)

// Frame constants.
const (
	// ProtocolVersion is the wire protocol version this package emits
	// and accepts.
	ProtocolVersion = 1

	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 10

	// MaxPayloadSize is the maximum payload size per frame
	// (2^16 - 1 bytes). Larger message bodies span multiple frames.
	MaxPayloadSize = 65535
)

// FrameFlags mark a frame's position within its message.
type FrameFlags uint16

const (
	FlagFirst FrameFlags = 0x0001 // First frame of a message
	FlagLast  FrameFlags = 0x0002 // Last frame of a message
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrUnsupportedVersion = errors.New("protocol: unsupported protocol version")
)

// Frame is a single wire unit. A message whose body fits in one frame
// is sent with both FlagFirst and FlagLast set; a larger body is split
// into consecutive frames sharing the same MessageID and Type.
//
// Wire format (10 bytes header + variable payload, big-endian):
//
//	┌──────────┬───────────┬─────────────┬──────────┬────────────────┐
//	│ Version  │ Flags     │ Message ID  │ Type     │ Payload Length │
//	│ (1 byte) │ (2 bytes) │ (4 bytes)   │ (1 byte) │ (2 bytes)      │
//	└──────────┴───────────┴─────────────┴──────────┴────────────────┘
//	│                                                                │
//	│  Payload (variable length)                                     │
//	└────────────────────────────────────────────────────────────────┘
type Frame struct {
	Version   uint8
	Flags     FrameFlags
	MessageID uint32
	Type      MessageType
	Payload   []byte
}

// First reports whether this frame opens a message.
func (f *Frame) First() bool { return f.Flags.Has(FlagFirst) }

// Last reports whether this frame completes a message.
func (f *Frame) Last() bool { return f.Flags.Has(FlagLast) }

// Encode encodes the frame to bytes including the header.
// The payload must not exceed MaxPayloadSize.
func (f *Frame) Encode() []byte {
	length := len(f.Payload)
	buf := make([]byte, HeaderSize+length)
	buf[0] = f.Version
	buf[1] = byte(f.Flags >> 8)
	buf[2] = byte(f.Flags)
	buf[3] = byte(f.MessageID >> 24)
	buf[4] = byte(f.MessageID >> 16)
	buf[5] = byte(f.MessageID >> 8)
	buf[6] = byte(f.MessageID)
	buf[7] = byte(f.Type)
	buf[8] = byte(length >> 8)
	buf[9] = byte(length)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// EncodeTo encodes the frame using the provided encoder.
func (f *Frame) EncodeTo(e *Encoder) {
	e.WriteByte(f.Version)
	e.WriteUint16(uint16(f.Flags))
	e.WriteUint32(f.MessageID)
	e.WriteByte(byte(f.Type))
	e.WriteUint16(uint16(len(f.Payload)))
	e.WriteBytes(f.Payload)
}

// DecodeFrame decodes a frame from bytes.
// The input must contain at least the header (10 bytes) and full payload.
func DecodeFrame(data []byte) (*Frame, error) {
	return DecodeFrameFrom(NewDecoder(data))
}

// DecodeFrameFrom decodes a frame from a decoder, advancing its
// position past the frame. The payload is copied out of the decoder's
// buffer and safe to retain. A short buffer returns io.ErrUnexpectedEOF
// with the position unspecified; callers resuming a byte stream should
// retry from the frame's start once more data is available.
func DecodeFrameFrom(d *Decoder) (*Frame, error) {
	version, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	flags, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	id, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	typeByte, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	length, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}

	raw, err := d.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	payload := make([]byte, length)
	copy(payload, raw)

	return &Frame{
		Version:   version,
		Flags:     FrameFlags(flags),
		MessageID: id,
		Type:      MessageType(typeByte),
		Payload:   payload,
	}, nil
}
