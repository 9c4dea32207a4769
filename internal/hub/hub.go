// Package hub fans processed frames and statistics out to remote viewers.
//
// The hub owns the registry of open connections and each connection's
// lifecycle. Broadcasting is best-effort: a frame is encoded once, offered to
// every open connection without blocking, and a viewer that cannot take it
// simply misses it. One viewer's failure never affects the others or the
// producer.
package hub

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"framecast/internal/frame"
	"framecast/internal/platform/logger"
	"framecast/internal/platform/metrics"
	"framecast/internal/stats"
)

// DefaultWelcome is the greeting sent to each viewer on open.
const DefaultWelcome = "Connected to framecast"

// Config tunes per-connection behavior.
type Config struct {
	WelcomeMessage string

	// WriteTimeout bounds every socket write, including pings and close frames.
	WriteTimeout time.Duration

	// OutboxSize is how many messages may wait for one viewer before new ones
	// are dropped for it.
	OutboxSize int

	// PingInterval enables keep-alive pings; a viewer silent for two intervals
	// is Errored. Zero disables keep-alive.
	PingInterval time.Duration

	// ReadLimit caps inbound message size in bytes. Zero means no limit.
	ReadLimit int64
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		WelcomeMessage: DefaultWelcome,
		WriteTimeout:   2 * time.Second,
		OutboxSize:     4,
		PingInterval:   20 * time.Second,
		ReadLimit:      4096,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WelcomeMessage == "" {
		c.WelcomeMessage = d.WelcomeMessage
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = d.OutboxSize
	}
	if c.PingInterval < 0 {
		c.PingInterval = 0
	}
	if c.ReadLimit < 0 {
		c.ReadLimit = 0
	}
	return c
}

// Result summarizes one broadcast. It exists for logging and tests; callers
// never need to act on it.
type Result struct {
	Targets   int
	Delivered int
	Dropped   int
	Failed    int
}

// Hub is the broadcast hub. Safe for concurrent use.
type Hub struct {
	cfg      Config
	registry *Registry
	encoder  frame.Encoder
	log      *slog.Logger
	metrics  *metrics.Metrics
	listener Listener
	welcome  []byte

	// membership serializes registry changes with the posting of their
	// notifications, so callbacks arrive in the order the counts changed.
	membership sync.Mutex
	notify     *notifier
}

// New returns a Hub. log, m and listener may be nil.
func New(enc frame.Encoder, cfg Config, log *slog.Logger, m *metrics.Metrics, listener Listener) (*Hub, error) {
	if enc == nil {
		return nil, errors.New("hub: nil encoder")
	}
	if log == nil {
		log = logger.Nop()
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}
	cfg = cfg.withDefaults()

	welcome, err := marshalWelcome(cfg.WelcomeMessage)
	if err != nil {
		return nil, fmt.Errorf("hub: welcome message: %w", err)
	}

	return &Hub{
		cfg:      cfg,
		registry: NewRegistry(),
		encoder:  enc,
		log:      log,
		metrics:  m,
		listener: listener,
		welcome:  welcome,
		notify:   newNotifier(),
	}, nil
}

// Attach registers a transport whose handshake has completed. The new
// connection opens with the welcome message queued first, joins the registry
// and the listener is told the new count. The caller should then run
// ReadLoop on the returned Conn.
func (h *Hub) Attach(t Transport, remoteAddr string) (*Conn, error) {
	c := newConn(t, remoteAddr, h.cfg, h.log, h.metrics, h.detach)
	if err := c.open(h.welcome); err != nil {
		return nil, err
	}

	h.membership.Lock()
	defer h.membership.Unlock()

	// The write loop may already have failed; an ended connection never joins.
	if c.State() != StateOpen {
		return c, ErrConnNotOpen
	}
	count := h.registry.Add(c)
	h.metrics.SetConnectedClients(count)
	h.notify.post(func() { h.listener.OnClientConnected(count) })
	return c, nil
}

// detach runs once per connection when it reaches a terminal state.
func (h *Hub) detach(c *Conn, state State, cause error) {
	h.remove(c)
	h.metrics.IncConnectionsEnded(state.String())
	if state == StateErrored && cause != nil {
		h.NotifyError(fmt.Sprintf("viewer %s: %v", c.RemoteAddr(), cause))
	}
}

// remove takes c out of the registry, notifying only if it was still there.
func (h *Hub) remove(c *Conn) {
	h.membership.Lock()
	defer h.membership.Unlock()

	count, removed := h.registry.Remove(c)
	if !removed {
		return
	}
	h.metrics.SetConnectedClients(count)
	h.notify.post(func() { h.listener.OnClientDisconnected(count) })
}

// NotifyStarted queues the started callback behind any pending notifications.
func (h *Hub) NotifyStarted() {
	h.notify.post(h.listener.OnStarted)
}

// NotifyStopped queues the stopped callback behind any pending notifications.
func (h *Hub) NotifyStopped() {
	h.notify.post(h.listener.OnStopped)
}

// NotifyError queues the error callback.
func (h *Hub) NotifyError(message string) {
	h.notify.post(func() { h.listener.OnError(message) })
}

// BroadcastFrame encodes f once and offers it to every open connection. With
// no connections it returns immediately without encoding. An encoding fault
// aborts this broadcast only; nothing is sent and the error is returned for
// the producer to log.
func (h *Hub) BroadcastFrame(f frame.Frame) (Result, error) {
	if h.registry.Count() == 0 {
		return Result{}, nil
	}

	start := time.Now()
	enc, err := h.encoder.Encode(f)
	if err != nil {
		h.metrics.IncEncodeFailures()
		h.log.Error("frame encode failed", slog.Uint64("seq", f.Seq), slog.String("error", err.Error()))
		return Result{}, fmt.Errorf("hub: encode frame %d: %w", f.Seq, err)
	}
	h.metrics.ObserveEncode(time.Since(start))

	payload, err := marshalFrame(enc)
	if err != nil {
		h.metrics.IncEncodeFailures()
		return Result{}, fmt.Errorf("hub: marshal frame %d: %w", f.Seq, err)
	}

	res := h.fanOut(payload)
	if res.Targets > 0 {
		h.metrics.IncFramesBroadcast()
	}
	h.log.Debug("frame broadcast",
		slog.Uint64("seq", f.Seq),
		slog.Int("bytes", len(payload)),
		slog.Int("delivered", res.Delivered),
		slog.Int("dropped", res.Dropped),
		slog.Int("failed", res.Failed))
	return res, nil
}

// BroadcastStats offers rec to every open connection with the same
// discipline as BroadcastFrame.
func (h *Hub) BroadcastStats(rec stats.Record) (Result, error) {
	if h.registry.Count() == 0 {
		return Result{}, nil
	}

	payload, err := marshalStats(rec)
	if err != nil {
		return Result{}, fmt.Errorf("hub: marshal stats: %w", err)
	}

	res := h.fanOut(payload)
	if res.Targets > 0 {
		h.metrics.IncStatsBroadcast()
	}
	return res, nil
}

// fanOut sends payload to each member of a registry snapshot independently.
// Connections found no longer open are removed after their send attempt; the
// snapshot itself is never modified.
func (h *Hub) fanOut(payload []byte) Result {
	snapshot := h.registry.Snapshot()
	res := Result{Targets: len(snapshot)}

	for _, c := range snapshot {
		err := c.Send(payload)
		switch {
		case err == nil:
			res.Delivered++
		case errors.Is(err, ErrOutboxFull):
			res.Dropped++
		default:
			res.Failed++
			h.log.Warn("send failed, removing viewer",
				slog.String("conn_id", c.ID().String()),
				slog.String("remote_addr", c.RemoteAddr()),
				slog.String("error", err.Error()))
			h.remove(c)
		}
	}

	h.metrics.AddMessagesDropped(res.Dropped)
	return res
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	return h.registry.Count()
}

// HasClients reports whether at least one viewer is connected.
func (h *Hub) HasClients() bool {
	return h.registry.Count() > 0
}

// CloseAll gracefully closes every open connection and returns once each of
// them has ended and left the registry, including connections another
// goroutine was already closing.
func (h *Hub) CloseAll() {
	snapshot := h.registry.Snapshot()
	for _, c := range snapshot {
		_ = c.Close()
	}
	for _, c := range snapshot {
		<-c.finished
	}
}

// Viewer describes one open connection.
type Viewer struct {
	ID         string `json:"id"`
	RemoteAddr string `json:"remoteAddr"`
	State      string `json:"state"`
	Sent       uint64 `json:"sent"`
	Dropped    uint64 `json:"dropped"`
}

// Viewers lists the open connections with their delivery counters.
func (h *Hub) Viewers() []Viewer {
	snapshot := h.registry.Snapshot()
	out := make([]Viewer, 0, len(snapshot))
	for _, c := range snapshot {
		out = append(out, Viewer{
			ID:         c.ID().String(),
			RemoteAddr: c.RemoteAddr(),
			State:      c.State().String(),
			Sent:       c.Sent(),
			Dropped:    c.Dropped(),
		})
	}
	return out
}
