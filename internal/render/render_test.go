package render

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framecast/internal/frame"
	"framecast/internal/relay"
)

func solid(seq uint64, w, h int, c color.RGBA) frame.Frame {
	f := frame.New(seq, w, h)
	for i := 0; i < len(f.Pixels); i += frame.BytesPerPixel {
		f.Pixels[i], f.Pixels[i+1], f.Pixels[i+2], f.Pixels[i+3] = c.R, c.G, c.B, c.A
	}
	return f
}

type failingSurface struct{ err error }

func (s failingSurface) Upload(*image.RGBA, uint64) error { return s.err }
func (s failingSurface) Draw() error                       { return nil }

func TestNewLoop_requiresCollaborators(t *testing.T) {
	_, err := NewLoop(nil, NewMemorySurface(), Config{}, nil, nil)
	assert.Error(t, err)
	_, err = NewLoop(relay.New(), nil, Config{}, nil, nil)
	assert.Error(t, err)
}

func TestLoop_RenderOnce(t *testing.T) {
	r := relay.New()
	s := NewMemorySurface()
	l, err := NewLoop(r, s, Config{Width: 4, Height: 2}, nil, nil)
	require.NoError(t, err)

	uploaded, err := l.RenderOnce()
	require.NoError(t, err)
	assert.False(t, uploaded)
	assert.Zero(t, s.Draws(), "nothing to draw before the first frame")

	red := color.RGBA{R: 255, A: 255}
	require.NoError(t, r.Publish(solid(1, 16, 8, color.RGBA{B: 255, A: 255})))
	require.NoError(t, r.Publish(solid(2, 16, 8, red)))

	uploaded, err = l.RenderOnce()
	require.NoError(t, err)
	assert.True(t, uploaded)

	img, seq, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq, "latest frame wins")
	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, red, img.RGBAAt(1, 1))

	uploaded, err = l.RenderOnce()
	require.NoError(t, err)
	assert.False(t, uploaded, "no new frame")
	assert.Equal(t, uint64(2), s.Draws(), "previous texture redrawn")
}

func TestLoop_RenderOnce_uploadError(t *testing.T) {
	r := relay.New()
	boom := errors.New("device lost")
	l, err := NewLoop(r, failingSurface{err: boom}, Config{Width: 2, Height: 2}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.Publish(solid(1, 2, 2, color.RGBA{A: 255})))
	_, err = l.RenderOnce()
	assert.ErrorIs(t, err, boom)
}

func TestLoop_Run(t *testing.T) {
	r := relay.New()
	s := NewMemorySurface()
	l, err := NewLoop(r, s, Config{Width: 2, Height: 2, Interval: 2 * time.Millisecond}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.NoError(t, r.Publish(solid(9, 4, 4, color.RGBA{G: 255, A: 255})))
	require.Eventually(t, func() bool {
		_, seq, err := s.Snapshot()
		return err == nil && seq == 9
	}, time.Second, 2*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("render loop did not stop")
	}
}

func TestMemorySurface_ServeSnapshot(t *testing.T) {
	s := NewMemorySurface()

	rec := httptest.NewRecorder()
	s.ServeSnapshot(rec, httptest.NewRequest(http.MethodGet, "/snapshot.jpg", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	tex := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, s.Upload(tex, 42))

	rec = httptest.NewRecorder()
	s.ServeSnapshot(rec, httptest.NewRequest(http.MethodGet, "/snapshot.jpg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "42", rec.Header().Get("X-Frame-Seq"))

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}
