package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for frame distribution.
// All methods are safe on a nil *Metrics so components can run without metrics
// (e.g. in tests).
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal prometheus.Counter
	errorsTotal   prometheus.Counter

	connectedClients    prometheus.Gauge
	connectionsTotal    *prometheus.CounterVec
	framesBroadcast     prometheus.Counter
	statsBroadcast      prometheus.Counter
	messagesSent        prometheus.Counter
	messagesDropped     prometheus.Counter
	sendFailures        prometheus.Counter
	encodeFailures      prometheus.Counter
	encodeSeconds       prometheus.Histogram
	framesProduced      prometheus.Counter
	renderUploads       prometheus.Counter
	lastProcessingMilli prometheus.Gauge
}

// New creates and registers Prometheus metrics for the frame relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_http_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_http_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "framecast_connected_clients",
			Help: "Number of viewer connections currently open",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "framecast_connections_total",
			Help: "Viewer connections by terminal state",
		}, []string{"state"}),
		framesBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_frames_broadcast_total",
			Help: "Frames encoded and fanned out to at least one viewer",
		}),
		statsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_stats_broadcast_total",
			Help: "Statistics records fanned out to at least one viewer",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_messages_sent_total",
			Help: "Messages written to viewer sockets",
		}),
		messagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_messages_dropped_total",
			Help: "Messages a viewer missed because its outbox was full",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_send_failures_total",
			Help: "Sends that failed and removed the viewer",
		}),
		encodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_encode_failures_total",
			Help: "Frames whose encoding failed; the broadcast was aborted",
		}),
		encodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "framecast_encode_seconds",
			Help:    "Time spent compressing and text-encoding one frame",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		framesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_frames_produced_total",
			Help: "Frames received from the frame source",
		}),
		renderUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "framecast_render_uploads_total",
			Help: "Frames uploaded to the render surface",
		}),
		lastProcessingMilli: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "framecast_processing_milliseconds",
			Help: "Processing time reported for the most recent frame",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.connectedClients,
		m.connectionsTotal,
		m.framesBroadcast,
		m.statsBroadcast,
		m.messagesSent,
		m.messagesDropped,
		m.sendFailures,
		m.encodeFailures,
		m.encodeSeconds,
		m.framesProduced,
		m.renderUploads,
		m.lastProcessingMilli,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the HTTP errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// SetConnectedClients sets the connected clients gauge.
func (m *Metrics) SetConnectedClients(n int) {
	if m == nil {
		return
	}
	m.connectedClients.Set(float64(n))
}

// IncConnectionsEnded counts a connection reaching a terminal state
// ("closed" or "errored").
func (m *Metrics) IncConnectionsEnded(state string) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(state).Inc()
}

// IncFramesBroadcast increments the broadcast frames counter.
func (m *Metrics) IncFramesBroadcast() {
	if m == nil {
		return
	}
	m.framesBroadcast.Inc()
}

// IncStatsBroadcast increments the broadcast stats counter.
func (m *Metrics) IncStatsBroadcast() {
	if m == nil {
		return
	}
	m.statsBroadcast.Inc()
}

// IncMessagesSent increments the written messages counter.
func (m *Metrics) IncMessagesSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

// AddMessagesDropped adds n to the dropped messages counter.
func (m *Metrics) AddMessagesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.messagesDropped.Add(float64(n))
}

// IncSendFailures increments the send failures counter.
func (m *Metrics) IncSendFailures() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

// IncEncodeFailures increments the encode failures counter.
func (m *Metrics) IncEncodeFailures() {
	if m == nil {
		return
	}
	m.encodeFailures.Inc()
}

// ObserveEncode records how long one frame took to encode.
func (m *Metrics) ObserveEncode(d time.Duration) {
	if m == nil {
		return
	}
	m.encodeSeconds.Observe(d.Seconds())
}

// IncFramesProduced increments the produced frames counter.
func (m *Metrics) IncFramesProduced() {
	if m == nil {
		return
	}
	m.framesProduced.Inc()
}

// SetProcessingTime sets the last reported processing time in milliseconds.
func (m *Metrics) SetProcessingTime(ms float64) {
	if m == nil {
		return
	}
	m.lastProcessingMilli.Set(ms)
}

// RegisterRelayOverwrites exports the relay's overwrite count, read from
// overwritten at scrape time.
func (m *Metrics) RegisterRelayOverwrites(overwritten func() uint64) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "framecast_relay_overwrites_total",
		Help: "Frames overwritten in the render relay before the renderer consumed them",
	}, func() float64 { return float64(overwritten()) }))
}

// IncRenderUploads increments the render uploads counter.
func (m *Metrics) IncRenderUploads() {
	if m == nil {
		return
	}
	m.renderUploads.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. relay overwrites).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
