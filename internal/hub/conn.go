package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"framecast/internal/platform/metrics"
)

var (
	// ErrConnNotOpen is returned by Send once a connection has left the Open state.
	ErrConnNotOpen = errors.New("hub: connection not open")

	// ErrOutboxFull is returned by Send when the viewer has not drained its
	// previous messages; the message is dropped and the connection stays open.
	ErrOutboxFull = errors.New("hub: outbox full")

	// ErrInvalidTransition is returned for lifecycle transitions the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("hub: invalid state transition")
)

// Conn is one remote viewer. Sends never touch the socket: they enqueue into
// a small bounded outbox drained by the connection's own write loop, which
// applies a write deadline to every socket write. A viewer that cannot keep
// up misses messages; one whose socket stalls past the deadline is Errored.
type Conn struct {
	id         uuid.UUID
	remoteAddr string
	transport  Transport
	cfg        Config
	log        *slog.Logger
	metrics    *metrics.Metrics

	mu     sync.Mutex
	state  State
	outbox chan []byte
	done   chan struct{}

	// finished closes after onTerminal has returned.
	finished chan struct{}

	onTerminal func(c *Conn, state State, cause error)

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func newConn(t Transport, remoteAddr string, cfg Config, log *slog.Logger, m *metrics.Metrics, onTerminal func(*Conn, State, error)) *Conn {
	id := uuid.New()
	return &Conn{
		id:         id,
		remoteAddr: remoteAddr,
		transport:  t,
		cfg:        cfg,
		log:        log.With(slog.String("conn_id", id.String()), slog.String("remote_addr", remoteAddr)),
		metrics:    m,
		state:      StateConnecting,
		outbox:     make(chan []byte, cfg.OutboxSize),
		done:       make(chan struct{}),
		finished:   make(chan struct{}),
		onTerminal: onTerminal,
	}
}

// ID returns the connection's identity.
func (c *Conn) ID() uuid.UUID { return c.id }

// RemoteAddr returns the viewer's address as seen at accept time.
func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// State returns the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Sent returns the number of messages written to the socket.
func (c *Conn) Sent() uint64 { return c.sent.Load() }

// Dropped returns the number of messages skipped because the outbox was full.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// open moves Connecting -> Open. welcome, when non-nil, is queued ahead of
// anything a broadcast can enqueue.
func (c *Conn) open(welcome []byte) error {
	c.mu.Lock()
	if !c.state.CanTransition(StateOpen) {
		from := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StateOpen)
	}
	c.state = StateOpen
	if welcome != nil {
		c.outbox <- welcome
	}
	c.mu.Unlock()

	c.log.Info("viewer open")
	go c.writeLoop()
	return nil
}

// Send queues payload for delivery without blocking.
func (c *Conn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return ErrConnNotOpen
	}
	select {
	case c.outbox <- payload:
		return nil
	default:
		c.dropped.Add(1)
		return ErrOutboxFull
	}
}

// Close shuts the connection down gracefully from the local side. Calling it
// on a connection that already ended is a no-op.
func (c *Conn) Close() error {
	c.terminate(StateClosed, nil, true)
	return nil
}

func (c *Conn) writeLoop() {
	var ping <-chan time.Time
	if c.cfg.PingInterval > 0 {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.outbox:
			if err := c.write(payload); err != nil {
				c.metrics.IncSendFailures()
				c.terminate(StateErrored, fmt.Errorf("write: %w", err), false)
				return
			}
			c.sent.Add(1)
			c.metrics.IncMessagesSent()
		case <-ping:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.transport.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.terminate(StateErrored, fmt.Errorf("ping: %w", err), false)
				return
			}
		}
	}
}

func (c *Conn) write(payload []byte) error {
	if err := c.transport.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.transport.WriteMessage(websocket.TextMessage, payload)
}

// ReadLoop consumes inbound traffic until the socket fails or closes, and
// drives the matching lifecycle transition. It blocks; run it on the
// goroutine that accepted the connection. Inbound messages are ignored.
func (c *Conn) ReadLoop() {
	if c.cfg.ReadLimit > 0 {
		c.transport.SetReadLimit(c.cfg.ReadLimit)
	}
	if c.cfg.PingInterval > 0 {
		pongWait := 2 * c.cfg.PingInterval
		_ = c.transport.SetReadDeadline(time.Now().Add(pongWait))
		c.transport.SetPongHandler(func(string) error {
			return c.transport.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		_, msg, err := c.transport.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.terminate(StateClosed, nil, false)
			} else {
				c.terminate(StateErrored, fmt.Errorf("read: %w", err), false)
			}
			return
		}
		c.log.Debug("viewer message ignored", slog.Int("bytes", len(msg)))
	}
}

// terminate moves the connection to a terminal state exactly once and reports
// whether this call did it. The socket is closed outside c.mu.
func (c *Conn) terminate(to State, cause error, local bool) bool {
	c.mu.Lock()
	if !c.state.CanTransition(to) {
		c.mu.Unlock()
		return false
	}
	from := c.state
	c.state = to
	close(c.done)
	c.mu.Unlock()

	if local && from == StateOpen {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.transport.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.cfg.WriteTimeout))
	}
	_ = c.transport.Close()

	attrs := []any{
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Uint64("sent", c.sent.Load()),
		slog.Uint64("dropped", c.dropped.Load()),
	}
	if cause != nil {
		c.log.Warn("viewer errored", append(attrs, slog.String("error", cause.Error()))...)
	} else {
		c.log.Info("viewer closed", attrs...)
	}

	if c.onTerminal != nil {
		c.onTerminal(c, to, cause)
	}
	close(c.finished)
	return true
}
