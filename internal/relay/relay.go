// Package relay hands frames from the producer to the render context through
// a single slot: the newest frame always replaces whatever is still waiting.
package relay

import (
	"image"
	"sync/atomic"

	"framecast/internal/frame"
)

// Entry is what the renderer receives: the frame and a render-ready RGBA view
// over the same pixels.
type Entry struct {
	Frame frame.Frame
	Image *image.RGBA
}

// Stats counts relay activity since construction.
type Stats struct {
	Published uint64 `json:"published"`
	// Overwritten counts frames replaced before the renderer consumed them.
	Overwritten uint64 `json:"overwritten"`
	Consumed    uint64 `json:"consumed"`
	// Pending is true while a published entry awaits the renderer.
	Pending bool `json:"pending"`
}

// Relay is a one-capacity overwrite buffer. Publish and Consume are single
// atomic operations on the slot, so they never block each other and a
// consumer sees either the entry before a publish or the one after it.
type Relay struct {
	slot atomic.Pointer[Entry]

	published   atomic.Uint64
	overwritten atomic.Uint64
	consumed    atomic.Uint64
}

// New returns an empty relay.
func New() *Relay {
	return &Relay{}
}

// Publish stores f as the latest frame, replacing any unconsumed one.
// Frames that fail validation are not published.
func (r *Relay) Publish(f frame.Frame) error {
	img, err := f.RGBA()
	if err != nil {
		return err
	}

	r.published.Add(1)
	if prev := r.slot.Swap(&Entry{Frame: f, Image: img}); prev != nil {
		r.overwritten.Add(1)
	}
	return nil
}

// Consume takes the latest entry. ok is false when nothing was published since
// the previous Consume; the renderer then redraws what it already has.
func (r *Relay) Consume() (e Entry, ok bool) {
	p := r.slot.Swap(nil)
	if p == nil {
		return Entry{}, false
	}
	r.consumed.Add(1)
	return *p, true
}

// Stats returns a snapshot of the counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Published:   r.published.Load(),
		Overwritten: r.overwritten.Load(),
		Consumed:    r.consumed.Load(),
		Pending:     r.slot.Load() != nil,
	}
}
