package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// minBufferSize is the initial capacity of a stream decoder's buffer.
const minBufferSize = 4096

// pendingMessage accumulates the chunks of a fragmented message until
// its last frame arrives.
type pendingMessage struct {
	mtype  MessageType
	chunks [][]byte
	size   int
}

// StreamDecoder reassembles messages from a stream of transport
// chunks.
//
// Chunks pushed into the decoder need not align with frame boundaries:
// bytes accumulate until complete frames are available, frames are
// reassembled into messages, and completed messages queue for Poll in
// completion order.
//
// StreamDecoder is not safe for concurrent use.
type StreamDecoder struct {
	buf    []byte
	off    int // start of unread bytes in buf
	length int // end of valid bytes in buf

	pending map[uint32]*pendingMessage
	ready   []*Message
}

// NewStreamDecoder creates an empty stream decoder.
func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{
		buf:     make([]byte, minBufferSize),
		pending: make(map[uint32]*pendingMessage),
	}
}

// Push appends a transport chunk and consumes every complete frame now
// in the buffer. Frames that violate the protocol (unsupported
// version, reassembled bodies that are not valid JSON) are skipped and
// reported in the returned error; the decoder remains usable and later
// frames from the same chunk are still processed.
func (sd *StreamDecoder) Push(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}
	sd.ensure(len(chunk))
	copy(sd.buf[sd.length:], chunk)
	sd.length += len(chunk)

	var errs []error
	for {
		d := NewDecoder(sd.buf[sd.off:sd.length])
		f, err := DecodeFrameFrom(d)
		if err != nil {
			break // incomplete frame, wait for the next chunk
		}
		sd.off += d.Position()
		if err := sd.accept(f); err != nil {
			errs = append(errs, err)
		}
	}
	if sd.off == sd.length {
		sd.off, sd.length = 0, 0
	}
	return errors.Join(errs...)
}

// accept routes one complete frame into the ready queue or the pending
// reassembly table.
func (sd *StreamDecoder) accept(f *Frame) error {
	if f.Version != ProtocolVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, f.Version, ProtocolVersion)
	}

	switch {
	case f.First() && f.Last():
		return sd.complete(f.MessageID, f.Type, f.Payload)

	case f.First():
		// A repeated first frame abandons the previous partial message.
		sd.pending[f.MessageID] = &pendingMessage{
			mtype:  f.Type,
			chunks: [][]byte{f.Payload},
			size:   len(f.Payload),
		}
		return nil

	default:
		p, ok := sd.pending[f.MessageID]
		if !ok || p.mtype != f.Type {
			// Continuation without a matching open message; drop it.
			return nil
		}
		p.chunks = append(p.chunks, f.Payload)
		p.size += len(f.Payload)
		if !f.Last() {
			return nil
		}
		delete(sd.pending, f.MessageID)
		payload := make([]byte, 0, p.size)
		for _, c := range p.chunks {
			payload = append(payload, c...)
		}
		return sd.complete(f.MessageID, p.mtype, payload)
	}
}

// complete validates a fully reassembled body and queues the message.
func (sd *StreamDecoder) complete(id uint32, mtype MessageType, payload []byte) error {
	if len(payload) == 0 {
		payload = nil
	} else if !json.Valid(payload) {
		return fmt.Errorf("%w: message %d", ErrInvalidPayload, id)
	}
	sd.ready = append(sd.ready, &Message{ID: id, Type: mtype, Payload: payload})
	return nil
}

// Poll returns the next completed message, or nil if none is ready.
func (sd *StreamDecoder) Poll() *Message {
	if len(sd.ready) == 0 {
		return nil
	}
	m := sd.ready[0]
	sd.ready[0] = nil
	sd.ready = sd.ready[1:]
	return m
}

// HasMessages reports whether at least one completed message is
// queued.
func (sd *StreamDecoder) HasMessages() bool {
	return len(sd.ready) > 0
}

// Reset discards buffered bytes, partial messages, and queued
// messages. Call it when the underlying connection is replaced.
func (sd *StreamDecoder) Reset() {
	sd.off, sd.length = 0, 0
	sd.pending = make(map[uint32]*pendingMessage)
	sd.ready = nil
}

// ensure makes room for n more bytes, compacting consumed bytes first
// and growing the buffer only when compaction is not enough.
func (sd *StreamDecoder) ensure(n int) {
	if sd.length+n <= len(sd.buf) {
		return
	}
	unread := sd.length - sd.off
	if unread+n <= len(sd.buf) {
		copy(sd.buf, sd.buf[sd.off:sd.length])
		sd.off, sd.length = 0, unread
		return
	}
	size := 2 * len(sd.buf)
	if size < unread+n {
		size = unread + n
	}
	grown := make([]byte, size)
	copy(grown, sd.buf[sd.off:sd.length])
	sd.buf = grown
	sd.off, sd.length = 0, unread
}
