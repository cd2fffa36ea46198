package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantLen int // expected total length including header
	}{
		{
			name: "empty_payload",
			frame: Frame{
				Version:   ProtocolVersion,
				Flags:     FlagFirst | FlagLast,
				MessageID: 1,
				Type:      TypeAck,
				Payload:   []byte{},
			},
			wantLen: HeaderSize,
		},
		{
			name: "with_payload",
			frame: Frame{
				Version:   ProtocolVersion,
				Flags:     FlagFirst | FlagLast,
				MessageID: 5,
				Type:      TypeCall,
				Payload:   []byte(`{"requestId":"a"}`),
			},
			wantLen: HeaderSize + 17,
		},
		{
			name: "first_fragment",
			frame: Frame{
				Version:   ProtocolVersion,
				Flags:     FlagFirst,
				MessageID: 1000,
				Type:      MessageType(100),
				Payload:   []byte("partial body"),
			},
			wantLen: HeaderSize + 12,
		},
		{
			name: "middle_fragment",
			frame: Frame{
				Version:   ProtocolVersion,
				Flags:     0,
				MessageID: 1000,
				Type:      MessageType(100),
				Payload:   []byte{0x01, 0x02, 0x03},
			},
			wantLen: HeaderSize + 3,
		},
		{
			name: "large_message_id",
			frame: Frame{
				Version:   ProtocolVersion,
				Flags:     FlagLast,
				MessageID: 0xDEADBEEF,
				Type:      TypeResponse,
				Payload:   []byte("x"),
			},
			wantLen: HeaderSize + 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Encode
			encoded := tc.frame.Encode()
			if len(encoded) != tc.wantLen {
				t.Errorf("Encode() length = %d, want %d", len(encoded), tc.wantLen)
			}

			// Decode
			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}

			if decoded.Version != tc.frame.Version {
				t.Errorf("Decoded version = %d, want %d", decoded.Version, tc.frame.Version)
			}
			if decoded.Flags != tc.frame.Flags {
				t.Errorf("Decoded flags = %v, want %v", decoded.Flags, tc.frame.Flags)
			}
			if decoded.MessageID != tc.frame.MessageID {
				t.Errorf("Decoded message ID = %d, want %d", decoded.MessageID, tc.frame.MessageID)
			}
			if decoded.Type != tc.frame.Type {
				t.Errorf("Decoded type = %v, want %v", decoded.Type, tc.frame.Type)
			}
			if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
				t.Errorf("Decoded payload = %v, want %v", decoded.Payload, tc.frame.Payload)
			}
		})
	}
}

func TestFrameHeaderLayout(t *testing.T) {
	f := &Frame{
		Version:   ProtocolVersion,
		Flags:     FlagFirst | FlagLast,
		MessageID: 5,
		Type:      TypeCall,
		Payload:   []byte(`{"requestId":"a","input":{"x":1}}`),
	}

	encoded := f.Encode()
	wantHeader := []byte{
		0x01,       // version
		0x00, 0x03, // flags: first|last
		0x00, 0x00, 0x00, 0x05, // message ID
		0x03,       // type: Call
		0x00, 0x21, // payload length: 33
	}
	if !bytes.Equal(encoded[:HeaderSize], wantHeader) {
		t.Errorf("Header = % x, want % x", encoded[:HeaderSize], wantHeader)
	}
	if len(encoded) != HeaderSize+33 {
		t.Errorf("Total length = %d, want %d", len(encoded), HeaderSize+33)
	}
}

func TestFrameEncodeTo(t *testing.T) {
	f := &Frame{
		Version:   ProtocolVersion,
		Flags:     FlagFirst,
		MessageID: 12,
		Type:      TypeCall,
		Payload:   []byte{0x01, 0x02, 0x03},
	}

	e := NewEncoder()
	f.EncodeTo(e)

	direct := f.Encode()
	if !bytes.Equal(e.Bytes(), direct) {
		t.Errorf("EncodeTo() = %v, want %v", e.Bytes(), direct)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	// Short header
	_, err := DecodeFrame([]byte{0x01, 0x00})
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Short header: got %v, want io.ErrUnexpectedEOF", err)
	}

	// Short payload: header claims 16 bytes, has 0
	header := []byte{0x01, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x02, 0x00, 0x10}
	_, err = DecodeFrame(header)
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Short payload: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestFrameFirstLast(t *testing.T) {
	tests := []struct {
		name      string
		flags     FrameFlags
		wantFirst bool
		wantLast  bool
	}{
		{"both", FlagFirst | FlagLast, true, true},
		{"first_only", FlagFirst, true, false},
		{"last_only", FlagLast, false, true},
		{"neither", 0, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &Frame{Flags: tc.flags}
			if got := f.First(); got != tc.wantFirst {
				t.Errorf("First() = %v, want %v", got, tc.wantFirst)
			}
			if got := f.Last(); got != tc.wantLast {
				t.Errorf("Last() = %v, want %v", got, tc.wantLast)
			}
		})
	}
}

func TestFrameFlagsHas(t *testing.T) {
	flags := FlagFirst

	if !flags.Has(FlagFirst) {
		t.Error("Has(FlagFirst) = false, want true")
	}
	if flags.Has(FlagLast) {
		t.Error("Has(FlagLast) = true, want false")
	}
}

func BenchmarkFrameEncode(b *testing.B) {
	f := &Frame{
		Version:   ProtocolVersion,
		Flags:     FlagFirst | FlagLast,
		MessageID: 42,
		Type:      TypeCall,
		Payload:   make([]byte, 100),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Encode()
	}
}

func BenchmarkDecodeFrame(b *testing.B) {
	f := &Frame{
		Version:   ProtocolVersion,
		Flags:     FlagFirst | FlagLast,
		MessageID: 42,
		Type:      TypeCall,
		Payload:   make([]byte, 100),
	}
	data := f.Encode()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecodeFrame(data)
	}
}
