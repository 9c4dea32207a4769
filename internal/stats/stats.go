// Package stats estimates the producer's frame rate and decides when a
// statistics record is due for viewers.
package stats

import (
	"sync"
	"time"
)

const (
	// DefaultInterval emits one record every 30 produced frames.
	DefaultInterval = 30

	window = time.Second
)

// Record is the statistics payload sent to viewers.
type Record struct {
	FPS    float64 `json:"fps"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	// ProcessingTime is the producer-reported processing duration in milliseconds.
	ProcessingTime float64 `json:"processingTime"`
	FrameCount     uint64  `json:"frameCount"`
}

// Aggregator is a fixed-window rate estimator: it counts frames until one
// second has elapsed, then publishes framesInWindow*1000/elapsedMillis and
// starts a new window. Safe for concurrent use; the producer observes while
// HTTP handlers read.
type Aggregator struct {
	mu  sync.Mutex
	now func() time.Time

	interval uint64

	windowStart  time.Time
	windowFrames int
	total        uint64
	fps          float64
	latest       Record
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithInterval sets the decimation interval. Values below 1 are ignored.
func WithInterval(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.interval = uint64(n)
		}
	}
}

// New returns an Aggregator whose first window starts now.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now, interval: DefaultInterval}
	for _, opt := range opts {
		opt(a)
	}
	a.windowStart = a.now()
	return a
}

// Observe accounts for one produced frame and returns the current record.
// emit is true on every interval-th frame (frameCount % interval == 0).
func (a *Aggregator) Observe(width, height int, processing time.Duration) (rec Record, emit bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.windowFrames++
	a.rollLocked(a.now())

	a.latest = Record{
		FPS:            a.fps,
		Width:          width,
		Height:         height,
		ProcessingTime: float64(processing) / float64(time.Millisecond),
		FrameCount:     a.total,
	}
	return a.latest, a.total%a.interval == 0
}

// Sample closes the current window if it has expired, even when no frame
// arrived in it, and returns the resulting fps. A stalled producer reads 0.
func (a *Aggregator) Sample() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rollLocked(a.now())
	a.latest.FPS = a.fps
	return a.fps
}

// rollLocked must be called with a.mu held.
func (a *Aggregator) rollLocked(now time.Time) {
	elapsed := now.Sub(a.windowStart)
	if elapsed < window {
		return
	}
	if ms := elapsed.Milliseconds(); ms > 0 {
		a.fps = float64(a.windowFrames) * 1000 / float64(ms)
	} else {
		a.fps = 0
	}
	a.windowFrames = 0
	a.windowStart = now
}

// FPS returns the rate computed for the last completed window.
func (a *Aggregator) FPS() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fps
}

// Latest returns the most recent record built by Observe.
func (a *Aggregator) Latest() Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// FrameCount returns the cumulative number of observed frames.
func (a *Aggregator) FrameCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}
