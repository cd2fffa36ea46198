package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeAssignsIDs(t *testing.T) {
	fe := NewFrameEncoder()

	m1 := &Message{Type: TypeAck}
	if _, err := fe.Encode(m1); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if m1.ID != 1 {
		t.Errorf("First assigned ID = %d, want 1", m1.ID)
	}

	m2 := &Message{Type: TypeAck}
	if _, err := fe.Encode(m2); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if m2.ID != 2 {
		t.Errorf("Second assigned ID = %d, want 2", m2.ID)
	}

	// A preset ID is kept and does not consume a counter value.
	preset := &Message{ID: 42, Type: TypeAck}
	frames, err := fe.Encode(preset)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if preset.ID != 42 || frames[0].MessageID != 42 {
		t.Errorf("Preset ID = %d (frame %d), want 42", preset.ID, frames[0].MessageID)
	}

	m3 := &Message{Type: TypeAck}
	if _, err := fe.Encode(m3); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if m3.ID != 3 {
		t.Errorf("Third assigned ID = %d, want 3", m3.ID)
	}
}

func TestEncodeSingleFrame(t *testing.T) {
	fe := NewFrameEncoder()

	msg, err := NewCall("a", "", map[string]int{"x": 1})
	if err != nil {
		t.Fatalf("NewCall() error = %v", err)
	}
	msg.ID = 5

	frames, err := fe.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Encode() produced %d frames, want 1", len(frames))
	}

	f := frames[0]
	if f.Flags != FlagFirst|FlagLast {
		t.Errorf("Flags = %v, want FlagFirst|FlagLast", f.Flags)
	}

	data := f.Encode()
	wantHeader := []byte{
		0x01,       // version
		0x00, 0x03, // flags: first|last
		0x00, 0x00, 0x00, 0x05, // message ID 5
		0x03,       // type: Call
		0x00, 0x21, // payload length: 33
	}
	if !bytes.Equal(data[:HeaderSize], wantHeader) {
		t.Errorf("Header = % x, want % x", data[:HeaderSize], wantHeader)
	}
	if got := string(data[HeaderSize:]); got != `{"requestId":"a","input":{"x":1}}` {
		t.Errorf("Payload = %s, want {\"requestId\":\"a\",\"input\":{\"x\":1}}", got)
	}
}

func TestEncodeFragmentsLargeBody(t *testing.T) {
	// A 150000-byte JSON string body splits into 65535 + 65535 + 18930.
	payload := make([]byte, 150000)
	payload[0] = '"'
	for i := 1; i < len(payload)-1; i++ {
		payload[i] = 'a'
	}
	payload[len(payload)-1] = '"'

	fe := NewFrameEncoder()
	msg := &Message{Type: MessageType(100), Payload: payload}

	frames, err := fe.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("Encode() produced %d frames, want 3", len(frames))
	}

	wantLens := []int{65535, 65535, 18930}
	wantFlags := []FrameFlags{FlagFirst, 0, FlagLast}
	var rebuilt []byte
	for i, f := range frames {
		if len(f.Payload) != wantLens[i] {
			t.Errorf("Frame %d payload length = %d, want %d", i, len(f.Payload), wantLens[i])
		}
		if f.Flags != wantFlags[i] {
			t.Errorf("Frame %d flags = %v, want %v", i, f.Flags, wantFlags[i])
		}
		if f.MessageID != msg.ID {
			t.Errorf("Frame %d message ID = %d, want %d", i, f.MessageID, msg.ID)
		}
		if f.Type != MessageType(100) {
			t.Errorf("Frame %d type = %v, want 100", i, f.Type)
		}
		rebuilt = append(rebuilt, f.Payload...)
	}
	if !bytes.Equal(rebuilt, payload) {
		t.Error("Concatenated frame payloads do not match the original body")
	}
}

func TestEncodeBoundarySizes(t *testing.T) {
	fe := NewFrameEncoder()

	// Exactly MaxPayloadSize stays a single frame.
	exact := jsonStringBody(MaxPayloadSize)
	frames, err := fe.Encode(&Message{Type: MessageType(100), Payload: exact})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(frames) != 1 || frames[0].Flags != FlagFirst|FlagLast {
		t.Errorf("Exact-size body: %d frames, flags %v; want 1 frame, FlagFirst|FlagLast",
			len(frames), frames[0].Flags)
	}

	// One byte over splits into two frames.
	over := jsonStringBody(MaxPayloadSize + 1)
	frames, err = fe.Encode(&Message{Type: MessageType(100), Payload: over})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("Oversize body: %d frames, want 2", len(frames))
	}
	if frames[0].Flags != FlagFirst || len(frames[0].Payload) != MaxPayloadSize {
		t.Errorf("Frame 0: flags %v, length %d; want FlagFirst, %d",
			frames[0].Flags, len(frames[0].Payload), MaxPayloadSize)
	}
	if frames[1].Flags != FlagLast || len(frames[1].Payload) != 1 {
		t.Errorf("Frame 1: flags %v, length %d; want FlagLast, 1",
			frames[1].Flags, len(frames[1].Payload))
	}
}

func TestEncodeEmptyBody(t *testing.T) {
	fe := NewFrameEncoder()

	frames, err := fe.Encode(&Message{Type: TypeAck})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("Encode() produced %d frames, want 1", len(frames))
	}
	if frames[0].Flags != FlagFirst|FlagLast {
		t.Errorf("Flags = %v, want FlagFirst|FlagLast", frames[0].Flags)
	}
	if len(frames[0].Payload) != 0 {
		t.Errorf("Payload length = %d, want 0", len(frames[0].Payload))
	}
}

func TestEncodeInvalidPayload(t *testing.T) {
	fe := NewFrameEncoder()

	msg := &Message{Type: TypeCall, Payload: []byte(`{"requestId":`)}
	if _, err := fe.Encode(msg); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Encode() = %v, want ErrInvalidPayload", err)
	}
	if msg.ID != 0 {
		t.Errorf("ID assigned despite encode failure: %d", msg.ID)
	}
}

func TestEncodeBytes(t *testing.T) {
	fe := NewFrameEncoder()

	msg := &Message{Type: MessageType(100), Payload: []byte(`"hello"`)}
	frames, err := fe.Encode(msg)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var want []byte
	for i := range frames {
		want = append(want, frames[i].Encode()...)
	}

	got, err := fe.EncodeBytes(msg)
	if err != nil {
		t.Fatalf("EncodeBytes() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeBytes() = % x, want % x", got, want)
	}
}

func TestFrameEncoderReset(t *testing.T) {
	fe := NewFrameEncoder()

	m1 := &Message{Type: TypeAck}
	fe.Encode(m1)
	m2 := &Message{Type: TypeAck}
	fe.Encode(m2)
	if m2.ID != 2 {
		t.Fatalf("ID before reset = %d, want 2", m2.ID)
	}

	fe.Reset()

	m3 := &Message{Type: TypeAck}
	fe.Encode(m3)
	if m3.ID != 1 {
		t.Errorf("ID after reset = %d, want 1", m3.ID)
	}
}

// jsonStringBody returns a valid JSON string value of exactly n bytes.
func jsonStringBody(n int) []byte {
	b := make([]byte, n)
	b[0] = '"'
	for i := 1; i < n-1; i++ {
		b[i] = 'a'
	}
	b[n-1] = '"'
	return b
}
