// Package pipeline is the producer context: it pulls processed frames from a
// Source and distributes each one, in production order, to the viewer hub and
// the render relay. Nothing downstream can make it wait.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"framecast/internal/frame"
	"framecast/internal/hub"
	"framecast/internal/platform/logger"
	"framecast/internal/platform/metrics"
	"framecast/internal/relay"
	"framecast/internal/stats"
)

const sourceRetryDelay = 100 * time.Millisecond

// Source yields processed frames with the processing time each one took.
// Next blocks until a frame is ready and returns io.EOF when the stream ends.
type Source interface {
	Next(ctx context.Context) (frame.Frame, time.Duration, error)
}

// Broadcaster fans frames and statistics out to viewers. *hub.Hub implements it.
type Broadcaster interface {
	BroadcastFrame(f frame.Frame) (hub.Result, error)
	BroadcastStats(rec stats.Record) (hub.Result, error)
}

// Producer runs the per-frame step. Step and Run must not be called
// concurrently with each other.
type Producer struct {
	src     Source
	out     Broadcaster
	relay   *relay.Relay
	agg     *stats.Aggregator
	log     *slog.Logger
	metrics *metrics.Metrics

	seq atomic.Uint64
}

// NewProducer wires a producer. relay may be nil when no renderer is
// attached; log and m may be nil.
func NewProducer(src Source, out Broadcaster, r *relay.Relay, agg *stats.Aggregator, log *slog.Logger, m *metrics.Metrics) *Producer {
	if agg == nil {
		agg = stats.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Producer{src: src, out: out, relay: r, agg: agg, log: log, metrics: m}
}

// Run pulls frames until ctx is done or the source ends. Source errors other
// than io.EOF are logged and retried after a short pause.
func (p *Producer) Run(ctx context.Context) error {
	p.log.Info("producer started")
	defer p.log.Info("producer stopped", slog.Uint64("frames", p.seq.Load()))

	for {
		f, processing, err := p.src.Next(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			p.log.Warn("frame source failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(sourceRetryDelay):
			}
			continue
		}
		p.Step(f, processing)
	}
}

// Step distributes one frame: it assigns the next sequence number, updates
// the statistics, broadcasts the frame, broadcasts statistics on every
// interval-th frame and finally publishes to the render relay. A failed
// broadcast is logged and does not stop the relay publish. Step returns the
// frame as distributed.
func (p *Producer) Step(f frame.Frame, processing time.Duration) frame.Frame {
	f.Seq = p.seq.Add(1)

	rec, emit := p.agg.Observe(f.Width, f.Height, processing)
	p.metrics.IncFramesProduced()
	p.metrics.SetProcessingTime(rec.ProcessingTime)

	if _, err := p.out.BroadcastFrame(f); err != nil {
		p.log.Warn("frame broadcast aborted", slog.Uint64("seq", f.Seq), slog.String("error", err.Error()))
	}
	if emit {
		if _, err := p.out.BroadcastStats(rec); err != nil {
			p.log.Warn("stats broadcast failed", slog.String("error", err.Error()))
		}
	}

	if p.relay != nil {
		if err := p.relay.Publish(f); err != nil {
			p.log.Warn("relay publish rejected", slog.Uint64("seq", f.Seq), slog.String("error", err.Error()))
		}
	}
	return f
}

// Seq returns the sequence number of the last distributed frame.
func (p *Producer) Seq() uint64 {
	return p.seq.Load()
}

// Stats returns the aggregator the producer feeds.
func (p *Producer) Stats() *stats.Aggregator {
	return p.agg
}
