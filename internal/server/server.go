// Package server is the collaborator-facing side of framecast: it owns the
// listening socket, accepts WebSocket viewers into the hub and serves the
// HTTP surface around it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"framecast/internal/hub"
	"framecast/internal/platform/logger"
	"framecast/internal/platform/metrics"
)

// DefaultPort is the viewer port used when none is configured.
const DefaultPort = "8765"

// Config holds the server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8765". Port 0 picks a free port.
	Addr string

	ShutdownTimeout time.Duration

	// Routes, when set, mounts extra endpoints on the router.
	Routes func(r chi.Router)

	// UpdateGauges runs before each metrics scrape.
	UpdateGauges func()
}

// Server serves viewers for one Hub. Start and Stop may be called any number
// of times from any goroutine.
type Server struct {
	cfg      Config
	hub      *hub.Hub
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	accepting atomic.Bool

	mu      sync.Mutex
	httpSrv *http.Server
	ln      net.Listener
	served  chan struct{}
}

// New returns a stopped Server. Lifecycle callbacks go to the hub's
// Listener. log and m may be nil.
func New(h *hub.Hub, cfg Config, log *slog.Logger, m *metrics.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":" + DefaultPort
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		cfg:      cfg,
		hub:      h,
		log:      log,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// Viewers are unauthenticated and may be served from any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start binds the listening socket and begins accepting viewers. It is a
// no-op while already running. A bind failure is reported once through the
// error callback and returned; the server stays stopped and Start may be
// called again.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv != nil {
		return nil
	}

	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", s.cfg.Addr)
	if err != nil {
		err = fmt.Errorf("server: listen %s: %w", s.cfg.Addr, err)
		s.log.Error("server start failed", slog.String("error", err.Error()))
		s.hub.NotifyError(err.Error())
		return err
	}

	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	served := make(chan struct{})
	s.httpSrv, s.ln, s.served = srv, ln, served
	s.accepting.Store(true)

	go func() {
		defer close(served)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", slog.String("error", err.Error()))
			s.hub.NotifyError(err.Error())
		}
	}()

	s.log.Info("server started", slog.String("addr", ln.Addr().String()))
	s.hub.NotifyStarted()
	return nil
}

// Stop closes every viewer and the listening socket. It is safe to call when
// never started or already stopped; the stopped callback fires once per
// running period.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpSrv == nil {
		return nil
	}
	s.accepting.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked viewer sockets are not tracked by Shutdown; the hub closes them.
	err := s.httpSrv.Shutdown(ctx)
	s.hub.CloseAll()
	<-s.served

	s.httpSrv, s.ln, s.served = nil, nil, nil
	s.log.Info("server stopped")
	s.hub.NotifyStopped()

	if err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// Running reports whether the server is accepting viewers.
func (s *Server) Running() bool {
	return s.accepting.Load()
}

// Addr returns the bound address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// ClientCount returns the number of open viewers.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// HasClients reports whether any viewer is open.
func (s *Server) HasClients() bool {
	return s.hub.HasClients()
}
