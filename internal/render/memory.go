package render

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"net/http"
	"strconv"
	"sync"
)

// ErrNoTexture is returned before the first upload.
var ErrNoTexture = errors.New("render: no texture uploaded")

// MemorySurface is a headless Surface that keeps the last uploaded texture.
// It stands in for a GPU where none is attached and lets the service show
// what a local display would be drawing.
type MemorySurface struct {
	mu      sync.RWMutex
	texture *image.RGBA
	seq     uint64
	draws   uint64
}

// NewMemorySurface returns an empty surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{}
}

// Upload implements Surface.
func (s *MemorySurface) Upload(texture *image.RGBA, seq uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.texture == nil || s.texture.Bounds() != texture.Bounds() {
		s.texture = image.NewRGBA(texture.Bounds())
	}
	copy(s.texture.Pix, texture.Pix)
	s.seq = seq
	return nil
}

// Draw implements Surface.
func (s *MemorySurface) Draw() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draws++
	return nil
}

// Snapshot returns a copy of the current texture and its frame sequence.
func (s *MemorySurface) Snapshot() (*image.RGBA, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.texture == nil {
		return nil, 0, ErrNoTexture
	}
	img := image.NewRGBA(s.texture.Bounds())
	copy(img.Pix, s.texture.Pix)
	return img, s.seq, nil
}

// Draws returns how many times the surface was drawn.
func (s *MemorySurface) Draws() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draws
}

// ServeSnapshot handles GET /snapshot.jpg.
func (s *MemorySurface) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	img, seq, err := s.Snapshot()
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
