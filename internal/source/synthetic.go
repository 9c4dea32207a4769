// Package source provides frame sources for the producer. Synthetic renders a
// moving test pattern and runs it through the selected processing mode, so the
// service can be exercised without a camera.
package source

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"framecast/internal/frame"
)

// Config describes the synthetic stream.
type Config struct {
	Width  int
	Height int

	// FrameRate paces Next. Zero produces frames as fast as they are asked for.
	FrameRate int

	Mode Mode

	// Limit ends the stream with io.EOF after that many frames. Zero is unlimited.
	Limit int
}

// Synthetic is a paced test-pattern source. Next must be called from one
// goroutine; the mode may be changed from any goroutine.
type Synthetic struct {
	cfg      Config
	interval time.Duration
	mode     atomic.Int32

	raw      []byte
	tick     int
	produced int
	next     time.Time
}

// NewSynthetic returns a source. Dimensions below 1 default to 640x480.
func NewSynthetic(cfg Config) *Synthetic {
	if cfg.Width < 1 || cfg.Height < 1 {
		cfg.Width, cfg.Height = 640, 480
	}
	s := &Synthetic{
		cfg: cfg,
		raw: make([]byte, cfg.Width*cfg.Height*frame.BytesPerPixel),
	}
	if cfg.FrameRate > 0 {
		s.interval = time.Second / time.Duration(cfg.FrameRate)
	}
	s.mode.Store(int32(cfg.Mode))
	return s
}

// Mode returns the active processing mode.
func (s *Synthetic) Mode() Mode {
	return Mode(s.mode.Load())
}

// SetMode switches processing for subsequent frames.
func (s *Synthetic) SetMode(m Mode) {
	s.mode.Store(int32(m))
}

// Toggle flips edge detection on or off and returns the new mode.
func (s *Synthetic) Toggle() Mode {
	for {
		cur := Mode(s.mode.Load())
		next := ModeEdges
		if cur == ModeEdges {
			next = ModeRaw
		}
		if s.mode.CompareAndSwap(int32(cur), int32(next)) {
			return next
		}
	}
}

// Next waits for the next frame slot, renders and processes a frame and
// returns it with the time processing took. The returned frame owns its
// pixels; Seq is left for the producer to assign.
func (s *Synthetic) Next(ctx context.Context) (frame.Frame, time.Duration, error) {
	if s.cfg.Limit > 0 && s.produced >= s.cfg.Limit {
		return frame.Frame{}, 0, io.EOF
	}
	if err := s.wait(ctx); err != nil {
		return frame.Frame{}, 0, err
	}

	s.render()
	f := frame.New(0, s.cfg.Width, s.cfg.Height)

	start := time.Now()
	Process(s.Mode(), f.Pixels, s.raw, s.cfg.Width, s.cfg.Height)
	processing := time.Since(start)

	s.tick++
	s.produced++
	return f, processing, nil
}

func (s *Synthetic) wait(ctx context.Context) error {
	if s.interval == 0 {
		return ctx.Err()
	}

	now := time.Now()
	if s.next.IsZero() || now.Sub(s.next) > s.interval {
		// First frame, or we fell behind: resynchronize instead of bursting.
		s.next = now
	}
	delay := s.next.Sub(now)
	s.next = s.next.Add(s.interval)
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// render draws a diagonal color gradient with a bright square bouncing
// across it.
func (s *Synthetic) render() {
	w, h := s.cfg.Width, s.cfg.Height
	side := max(min(w, h)/6, 1)
	sx := bounce(s.tick*4, w-side)
	sy := bounce(s.tick*3, h-side)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * frame.BytesPerPixel
			if x >= sx && x < sx+side && y >= sy && y < sy+side {
				s.raw[i], s.raw[i+1], s.raw[i+2] = 0xff, 0xff, 0xff
			} else {
				s.raw[i] = byte((x + s.tick) * 255 / (w + 1))
				s.raw[i+1] = byte(y * 255 / (h + 1))
				s.raw[i+2] = byte((x + y + 2*s.tick) % 256)
			}
			s.raw[i+3] = 0xff
		}
	}
}

// bounce maps a running position onto 0..span back and forth.
func bounce(pos, span int) int {
	if span <= 0 {
		return 0
	}
	pos %= 2 * span
	if pos > span {
		return 2*span - pos
	}
	return pos
}
