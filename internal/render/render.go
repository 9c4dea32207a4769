// Package render is the local render context. It pulls the newest frame from
// the relay on its own schedule, scales it into a fixed-size texture and hands
// the texture to a Surface. The producer never waits on it.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	xdraw "golang.org/x/image/draw"

	"framecast/internal/platform/logger"
	"framecast/internal/platform/metrics"
	"framecast/internal/relay"
)

// Surface is the GPU-facing sink. Upload receives a texture the caller will
// reuse, so implementations must copy what they keep.
type Surface interface {
	Upload(texture *image.RGBA, seq uint64) error
	Draw() error
}

// Config sizes the texture and sets the refresh cadence.
type Config struct {
	Width    int
	Height   int
	Interval time.Duration
}

// Loop drives one Surface from one Relay.
type Loop struct {
	relay   *relay.Relay
	surface Surface
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics

	texture *image.RGBA
	lastSeq uint64
	drawn   bool
}

// NewLoop returns a render loop. Dimensions below 1 fall back to 320x240 and
// an interval below 1ms to a 60Hz refresh.
func NewLoop(r *relay.Relay, s Surface, cfg Config, log *slog.Logger, m *metrics.Metrics) (*Loop, error) {
	if r == nil || s == nil {
		return nil, errors.New("render: relay and surface are required")
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		cfg.Width, cfg.Height = 320, 240
	}
	if cfg.Interval < time.Millisecond {
		cfg.Interval = time.Second / 60
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Loop{
		relay:   r,
		surface: s,
		cfg:     cfg,
		log:     log,
		metrics: m,
		texture: image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height)),
	}, nil
}

// Run refreshes until ctx is done. Surface errors are logged and the next
// tick tries again.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	l.log.Info("render loop started",
		slog.Int("width", l.cfg.Width),
		slog.Int("height", l.cfg.Height),
		slog.Duration("interval", l.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			l.log.Info("render loop stopped", slog.Uint64("last_seq", l.lastSeq))
			return nil
		case <-ticker.C:
			if _, err := l.RenderOnce(); err != nil {
				l.log.Warn("render failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RenderOnce performs one refresh and reports whether a new frame was
// uploaded. With nothing new in the relay the previous texture is redrawn;
// before the first frame nothing is drawn.
func (l *Loop) RenderOnce() (uploaded bool, err error) {
	if e, ok := l.relay.Consume(); ok {
		xdraw.ApproxBiLinear.Scale(l.texture, l.texture.Bounds(), e.Image, e.Image.Bounds(), xdraw.Src, nil)
		if err := l.surface.Upload(l.texture, e.Frame.Seq); err != nil {
			return false, fmt.Errorf("render: upload frame %d: %w", e.Frame.Seq, err)
		}
		l.metrics.IncRenderUploads()
		l.lastSeq = e.Frame.Seq
		l.drawn = true
		uploaded = true
	}

	if !l.drawn {
		return false, nil
	}
	if err := l.surface.Draw(); err != nil {
		return uploaded, fmt.Errorf("render: draw: %w", err)
	}
	return uploaded, nil
}
