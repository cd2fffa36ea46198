package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentwire-dev/agentwire/pkg/protocol"
)

// MessageHandler receives completed inbound messages, one at a time in
// completion order. A returned error is logged and delivery continues
// with the next message.
type MessageHandler func(msg *protocol.Message) error

// connectAttempt is the shared outcome of one in-flight dial. All
// concurrent Connect callers wait on done and read err afterwards.
type connectAttempt struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Session owns one logical agent connection. It dials the endpoint,
// queues and writes outbound messages, reassembles inbound ones, and
// reconnects with exponential backoff when the connection drops. All
// methods are safe for concurrent use.
type Session struct {
	config   *Config
	logger   *slog.Logger
	dialer   Dialer
	endpoint string

	// gen counts established connections. Read pumps carry the value
	// current at their start, so events from a superseded socket are
	// ignored.
	gen atomic.Uint64

	mu             sync.Mutex
	state          State
	conn           Socket
	attempt        *connectAttempt
	manualClose    bool
	attempts       int
	reconnectTimer *time.Timer
	queue          []*protocol.Message
	enc            *protocol.FrameEncoder
	handler        MessageHandler
}

// New builds a Session from config. The config is cloned, zero-valued
// tuning fields are filled with their defaults, and the endpoint URL
// is derived once up front. No connection is opened until Connect or
// an auto-connecting Send.
func New(config *Config) (*Session, error) {
	if config == nil {
		return nil, errors.New("session: nil config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.Clone()
	config.normalize()

	endpoint, err := Endpoint(config.ServiceURL, config.LookupKey, config.ProjectID)
	if err != nil {
		return nil, err
	}
	return &Session{
		config:   config,
		logger:   config.Logger.With("agent", config.LookupKey),
		dialer:   config.Dialer,
		endpoint: endpoint,
		enc:      protocol.NewFrameEncoder(),
	}, nil
}

// OnMessage registers the inbound message handler. Passing nil drops
// inbound messages.
func (s *Session) OnMessage(h MessageHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// Endpoint returns the WebSocket URL the session dials.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the connection is open.
func (s *Session) Connected() bool {
	return s.State() == StateOpen
}

// Connecting reports whether a dial is in flight.
func (s *Session) Connecting() bool {
	return s.State() == StateConnecting
}

// Reconnecting reports whether the session is waiting out a backoff
// delay.
func (s *Session) Reconnecting() bool {
	return s.State() == StateReconnecting
}

// QueueLen returns how many outbound messages are waiting for the
// connection to open.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Connect establishes the connection, or joins the attempt already in
// flight so concurrent callers share one dial. It returns nil
// immediately when the session is already open. A pending reconnect
// timer is superseded. The context bounds only this caller's wait; the
// dial itself is bounded by HandshakeTimeout.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateOpen {
		s.mu.Unlock()
		return nil
	}
	s.manualClose = false
	s.stopReconnectTimerLocked()
	att := s.startAttemptLocked()
	s.mu.Unlock()

	select {
	case <-att.done:
		return att.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the connection with a normal closure code and
// suppresses automatic reconnection until the next Connect. An
// in-flight dial is aborted and a pending reconnect timer cancelled.
// Queued messages are kept. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.manualClose = true
	s.stopReconnectTimerLocked()
	if s.attempt != nil {
		s.attempt.cancel()
	}
	conn := s.conn
	s.conn = nil
	if conn == nil {
		// A cancelled in-flight dial settles the state itself.
		if s.state != StateConnecting {
			s.state = StateIdle
		}
		s.mu.Unlock()
		return
	}
	s.state = StateClosing
	s.mu.Unlock()

	// Close and WriteControl are safe concurrently with other writers.
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()

	s.mu.Lock()
	if s.state == StateClosing {
		s.state = StateIdle
	}
	s.mu.Unlock()
	s.logger.Info("disconnected")
}

// Send transmits msg when the connection is open, or appends it to the
// outbound queue until the next successful connect. With AutoConnect
// set, a Send while not open also fires a connection attempt without
// waiting for it. The returned error is non-nil only when the payload
// cannot be framed; transport failures re-queue the message at the
// tail and report StatusQueued. A queued message receives its ID when
// it is eventually written, not when queued.
func (s *Session) Send(msg *protocol.Message) (SendStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateOpen {
		if s.config.AutoConnect {
			s.manualClose = false
			s.stopReconnectTimerLocked()
			s.startAttemptLocked()
		}
		s.queue = append(s.queue, msg)
		s.logger.Debug("message queued", "type", msg.Type, "queue_len", len(s.queue))
		return StatusQueued, nil
	}

	frames, err := s.enc.Encode(msg)
	if err != nil {
		return 0, fmt.Errorf("session: encode message: %w", err)
	}
	if err := s.writeFramesLocked(frames); err != nil {
		s.logger.Warn("write failed, message queued",
			"error", err, "message_id", msg.ID, "queue_len", len(s.queue)+1)
		// IDs are connection-scoped; clear it so the next flush
		// assigns a fresh one.
		msg.ID = 0
		s.queue = append(s.queue, msg)
		return StatusQueued, nil
	}
	return StatusSent, nil
}

// startAttemptLocked begins a dial unless one is already in flight.
// Callers hold mu.
func (s *Session) startAttemptLocked() *connectAttempt {
	if s.attempt != nil {
		return s.attempt
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.config.HandshakeTimeout)
	att := &connectAttempt{cancel: cancel, done: make(chan struct{})}
	s.attempt = att
	s.state = StateConnecting
	go s.runConnect(att, ctx)
	return att
}

// runConnect performs one dial and settles the attempt. On success it
// installs the connection, flushes the queue and starts the read pump
// before releasing the lock, so no later Send can reach the wire ahead
// of the queued backlog.
func (s *Session) runConnect(att *connectAttempt, ctx context.Context) {
	defer close(att.done)
	defer att.cancel()

	conn, err := s.dialer.DialContext(ctx, s.endpoint)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = nil

	if s.manualClose {
		if err == nil {
			conn.Close()
		}
		s.state = StateIdle
		att.err = ErrDisconnected
		return
	}

	if err != nil {
		att.err = &ConnectError{Endpoint: s.endpoint, Err: err}
		s.logger.Warn("connect failed", "endpoint", s.endpoint, "error", err)
		// A failed dial takes the same path as an abnormal close.
		s.scheduleReconnectLocked()
		return
	}

	gen := s.gen.Add(1)
	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	s.enc.Reset()
	dec := protocol.NewStreamDecoder()
	s.flushLocked()
	s.logger.Info("connected", "endpoint", s.endpoint)

	go s.readPump(conn, dec, gen)
}

// flushLocked swaps out the queue and resends every entry in order. A
// transport failure re-queues the unsent remainder; an entry that
// cannot be framed is dropped. Callers hold mu with state Open.
func (s *Session) flushLocked() {
	if len(s.queue) == 0 {
		return
	}
	pending := s.queue
	s.queue = nil
	for i, msg := range pending {
		frames, err := s.enc.Encode(msg)
		if err != nil {
			s.logger.Error("dropping queued message", "error", err, "type", msg.Type)
			continue
		}
		if err := s.writeFramesLocked(frames); err != nil {
			msg.ID = 0
			s.queue = append(s.queue, pending[i:]...)
			s.logger.Warn("flush interrupted", "error", err, "requeued", len(s.queue))
			return
		}
	}
	s.logger.Debug("outbound queue flushed", "count", len(pending))
}

// writeFramesLocked hands each frame to the socket in order. Callers
// hold mu with state Open.
func (s *Session) writeFramesLocked(frames []protocol.Frame) error {
	for i := range frames {
		s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frames[i].Encode()); err != nil {
			return err
		}
	}
	return nil
}

// readPump reads transport chunks for one connection until the read
// fails, feeding the decoder and delivering completed messages. All
// delivery happens on this one goroutine, so handlers observe messages
// strictly in completion order.
func (s *Session) readPump(conn Socket, dec *protocol.StreamDecoder, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClose(gen, err)
			return
		}
		if err := dec.Push(data); err != nil {
			s.logger.Warn("dropped malformed frames", "error", err)
		}
		for dec.HasMessages() {
			if s.gen.Load() != gen {
				return
			}
			s.deliver(dec.Poll())
		}
	}
}

// deliver hands one message to the handler, catching any panic or
// error it produces.
func (s *Session) deliver(msg *protocol.Message) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if handler == nil {
		s.logger.Debug("no handler registered, message dropped",
			"message_id", msg.ID, "type", msg.Type)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("message handler panic",
				"panic", r,
				"message_id", msg.ID,
				"type", msg.Type,
				"stack", string(debug.Stack()))
		}
	}()
	if err := handler(msg); err != nil {
		s.logger.Error("message handler error",
			"error", err, "message_id", msg.ID, "type", msg.Type)
	}
}

// handleClose runs when a read pump exits. Stale pumps, from a
// superseded generation or an already-cleared socket, return without
// touching state.
func (s *Session) handleClose(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen.Load() || s.conn == nil {
		return
	}
	s.conn.Close()
	s.conn = nil

	code := closeCode(err)
	if s.manualClose || code == websocket.CloseNormalClosure {
		s.state = StateIdle
		s.logger.Info("connection closed", "code", code)
		return
	}

	s.logger.Warn("connection lost", "code", code, "error", err)
	s.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer for the next dial, or
// settles into Idle once the attempt budget is spent. At most one
// timer is pending at a time. Callers hold mu.
func (s *Session) scheduleReconnectLocked() {
	if s.attempts >= s.config.MaxReconnectAttempts {
		s.state = StateIdle
		s.logger.Warn("reconnect attempts exhausted", "attempts", s.attempts)
		return
	}
	s.attempts++
	delay := reconnectDelay(s.config.ReconnectBaseDelay, s.config.ReconnectMaxDelay, s.attempts)
	s.state = StateReconnecting
	s.stopReconnectTimerLocked()
	s.reconnectTimer = time.AfterFunc(delay, s.reconnect)
	s.logger.Info("reconnect scheduled", "attempt", s.attempts, "delay", delay)
}

// reconnect is the timer callback for a scheduled attempt.
func (s *Session) reconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manualClose || s.state != StateReconnecting {
		return
	}
	s.reconnectTimer = nil
	s.startAttemptLocked()
}

// stopReconnectTimerLocked cancels a pending reconnect timer, if any.
// Callers hold mu.
func (s *Session) stopReconnectTimerLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// reconnectDelay is the backoff curve: base doubled per prior attempt,
// capped at limit. attempt is 1-based.
func reconnectDelay(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt && d < limit; i++ {
		d <<= 1
	}
	if d <= 0 || d > limit {
		return limit
	}
	return d
}

// closeCode maps a read error to its WebSocket close code. Errors
// carrying no close frame (network failures, EOF) count as abnormal
// closure.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}
