// Package frame defines the processed frame handed over by the producer and
// the codec that turns it into its wire representation.
package frame

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"
)

// BytesPerPixel is the size of one pixel in the RGBA layout used by Frame.
const BytesPerPixel = 4

// ErrInvalidFrame is returned for frames with non-positive dimensions or a
// payload too short for them.
var ErrInvalidFrame = errors.New("frame: invalid frame")

// Frame is one processed image. It is treated as immutable once the producer
// hands it over: broadcast, relay and render all share Pixels without copying.
type Frame struct {
	// Seq is assigned by the producer and increases by one per frame.
	Seq uint64

	Width  int
	Height int

	// Pixels is row-major RGBA, Width*BytesPerPixel bytes per row.
	Pixels []byte

	// CapturedAt is the wall-clock arrival time reported by the source.
	CapturedAt time.Time
}

// Validate reports whether the frame's dimensions and payload agree.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if f.Width > math.MaxInt/BytesPerPixel/f.Height {
		return fmt.Errorf("%w: dimensions %dx%d overflow", ErrInvalidFrame, f.Width, f.Height)
	}
	if want := f.Width * f.Height * BytesPerPixel; len(f.Pixels) < want {
		return fmt.Errorf("%w: payload %d bytes, want %d", ErrInvalidFrame, len(f.Pixels), want)
	}
	return nil
}

// RGBA returns an image view over the frame's pixels. The view shares the
// underlying buffer and must not be written to.
func (f Frame) RGBA() (*image.RGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    f.Pixels,
		Stride: f.Width * BytesPerPixel,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, nil
}

// New allocates a zeroed frame of the given size.
func New(seq uint64, width, height int) Frame {
	return Frame{
		Seq:        seq,
		Width:      width,
		Height:     height,
		Pixels:     make([]byte, width*height*BytesPerPixel),
		CapturedAt: time.Now(),
	}
}
