// Package echoagent is a development agent server. It accepts live
// protocol connections, answers every Call with a Response echoing the
// input, and mirrors all other messages back verbatim. The CLI's echo
// command and the integration tests run against it.
package echoagent

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentwire-dev/agentwire/pkg/protocol"
)

// writeTimeout bounds each frame write back to the client.
const writeTimeout = 10 * time.Second

// Config configures the echo agent server.
type Config struct {
	// ProjectID is the pid the live endpoint accepts. Empty accepts
	// any non-empty pid.
	ProjectID string

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger

	// Registry receives the server's metrics. Defaults to a fresh
	// registry, exposed at /metrics.
	Registry *prometheus.Registry
}

// Server is the echo agent. Mount Handler on any HTTP server.
type Server struct {
	projectID string
	logger    *slog.Logger
	upgrader  websocket.Upgrader
	router    chi.Router
	metrics   *metrics
}

type metrics struct {
	connectionsTotal  prometheus.Counter
	connectionsActive prometheus.Gauge
	messagesTotal     *prometheus.CounterVec
	framesWritten     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentwire",
			Subsystem: "echoagent",
			Name:      "connections_total",
			Help:      "Live connections accepted.",
		}),
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentwire",
			Subsystem: "echoagent",
			Name:      "connections_active",
			Help:      "Live connections currently open.",
		}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentwire",
			Subsystem: "echoagent",
			Name:      "messages_total",
			Help:      "Messages by direction and type.",
		}, []string{"direction", "type"}),
		framesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agentwire",
			Subsystem: "echoagent",
			Name:      "frames_written_total",
			Help:      "Frames written back to clients.",
		}),
	}
}

// New builds an echo agent server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		projectID: cfg.ProjectID,
		logger:    cfg.Logger,
		upgrader: websocket.Upgrader{
			// Development fixture; any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: newMetrics(cfg.Registry),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/agent/live/{lookupKey}", s.handleLive)
	r.Get("/api/agents/{lookupKey}", s.handleLookup)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting in external routers or
// servers.
func (s *Server) Handler() http.Handler { return s.router }

// checkProject validates a pid query value.
func (s *Server) checkProject(pid string) bool {
	if pid == "" {
		return false
	}
	return s.projectID == "" || pid == s.projectID
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	lookupKey := chi.URLParam(r, "lookupKey")
	if !s.checkProject(r.URL.Query().Get("pid")) {
		http.Error(w, "unknown project", http.StatusForbidden)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.metrics.connectionsTotal.Inc()
	s.metrics.connectionsActive.Inc()
	s.serveConn(conn, lookupKey)
}

// serveConn echoes messages for one connection until the read fails.
func (s *Server) serveConn(conn *websocket.Conn, lookupKey string) {
	logger := s.logger.With("agent", lookupKey, "remote", conn.RemoteAddr().String())
	logger.Info("agent connected")
	defer func() {
		conn.Close()
		s.metrics.connectionsActive.Dec()
		logger.Info("agent disconnected")
	}()

	dec := protocol.NewStreamDecoder()
	enc := protocol.NewFrameEncoder()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := dec.Push(data); err != nil {
			logger.Warn("dropped malformed frames", "error", err)
		}
		for dec.HasMessages() {
			msg := dec.Poll()
			s.metrics.messagesTotal.WithLabelValues("in", msg.Type.String()).Inc()
			reply, err := echoReply(msg)
			if err != nil {
				logger.Warn("echo failed", "error", err, "type", msg.Type)
				continue
			}
			if err := s.writeMessage(conn, enc, reply); err != nil {
				logger.Warn("write failed", "error", err)
				return
			}
		}
	}
}

func (s *Server) writeMessage(conn *websocket.Conn, enc *protocol.FrameEncoder, msg *protocol.Message) error {
	frames, err := enc.Encode(msg)
	if err != nil {
		return err
	}
	for i := range frames {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, frames[i].Encode()); err != nil {
			return err
		}
	}
	s.metrics.messagesTotal.WithLabelValues("out", msg.Type.String()).Inc()
	s.metrics.framesWritten.Add(float64(len(frames)))
	return nil
}

// echoReply builds the reply for one inbound message. A Call comes
// back as a Response carrying the call's input; everything else is
// mirrored with a fresh ID.
func echoReply(msg *protocol.Message) (*protocol.Message, error) {
	if msg.Type == protocol.TypeCall {
		var p protocol.CallPayload
		if err := msg.UnmarshalPayload(&p); err != nil {
			return nil, err
		}
		return protocol.NewResponse(p.RequestID, p.Input)
	}
	return &protocol.Message{Type: msg.Type, Payload: msg.Payload}, nil
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	pid := r.URL.Query().Get("pid")
	if !s.checkProject(pid) {
		http.Error(w, "unknown project", http.StatusForbidden)
		return
	}
	info := struct {
		LookupKey string `json:"lookupKey"`
		ProjectID string `json:"projectId"`
		Name      string `json:"name"`
		Online    bool   `json:"online"`
	}{
		LookupKey: chi.URLParam(r, "lookupKey"),
		ProjectID: pid,
		Name:      "Echo Agent",
		Online:    true,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}
