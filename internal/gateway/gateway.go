package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skobkin/groundlink/internal/bus"
	"github.com/skobkin/groundlink/internal/connectors"
	"github.com/skobkin/groundlink/internal/telemetry"
)

const (
	writeWait    = 5 * time.Second
	pingInterval = 20 * time.Second
	pongWait     = 2 * pingInterval
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// Source provides the latest published telemetry update.
type Source interface {
	Last() telemetry.Update
}

// Envelope wraps every websocket message.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EnvelopeSnapshot = "snapshot"
	EnvelopeStatus   = "status"
)

// Server streams snapshots and connection status changes to websocket
// clients and serves the latest update over plain HTTP. Clients cannot send
// anything but control frames.
type Server struct {
	logger *slog.Logger
	bus    bus.MessageBus
	source Source

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	done     chan struct{}

	quit     chan struct{}
	quitOnce sync.Once
	clients  sync.WaitGroup
}

func New(logger *slog.Logger, b bus.MessageBus, source Source) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		logger: logger.With("component", "gateway"),
		bus:    b,
		source: source,
		quit:   make(chan struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.status)
	mux.HandleFunc("GET /ws", s.stream)

	return withLogging(s.logger, mux)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.http != nil {
		return errors.New("gateway already started")
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.http = srv
	s.listener = listener
	s.done = make(chan struct{})
	done := s.done

	go func() {
		defer close(done)
		s.logger.Info("gateway listening", "addr", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway stopped", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Shutdown stops accepting requests and closes every websocket stream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	done := s.done
	s.http = nil
	s.listener = nil
	s.mu.Unlock()

	s.quitOnce.Do(func() { close(s.quit) })
	if srv == nil {
		s.clients.Wait()

		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	s.clients.Wait()

	return err
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Last())
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)

		return
	}
	s.clients.Add(1)
	defer s.clients.Done()
	defer func() { _ = conn.Close() }()

	sub := s.bus.Subscribe(connectors.TopicSnapshot, connectors.TopicConnStatus)
	defer func() {
		// pubsub may be blocked delivering to sub
		go s.bus.Unsubscribe(sub)
	}()

	remote := conn.RemoteAddr().String()
	s.logger.Info("ws client connected", "remote", remote)
	defer s.logger.Info("ws client disconnected", "remote", remote)

	closed := make(chan struct{})
	go s.readControl(conn, closed)

	if err := writeEnvelope(conn, EnvelopeSnapshot, s.source.Last()); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case raw, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))

				return
			}
			env, ok := envelopeFor(raw)
			if !ok {
				continue
			}
			if err := writeEnvelope(conn, env.Type, env.Data); err != nil {
				s.logger.Debug("ws write failed", "remote", remote, "error", err)

				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))

			return
		case <-r.Context().Done():
			return
		}
	}
}

// readControl drains client frames so pings, pongs and close frames are
// processed. Data frames are ignored.
func (s *Server) readControl(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func envelopeFor(raw any) (Envelope, bool) {
	switch v := raw.(type) {
	case telemetry.Update:
		return Envelope{Type: EnvelopeSnapshot, Data: v}, true
	case connectors.ConnectionStatus:
		return Envelope{Type: EnvelopeStatus, Data: v}, true
	default:
		return Envelope{}, false
	}
}

func writeEnvelope(conn *websocket.Conn, typ string, data any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

	return conn.WriteJSON(Envelope{Type: typ, Data: data})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.code,
			"duration", time.Since(start),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	code int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.code = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}

	return h.Hijack()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
