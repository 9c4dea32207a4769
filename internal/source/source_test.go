package source

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framecast/internal/frame"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"raw", ModeRaw},
		{"Grayscale", ModeGrayscale},
		{" edges ", ModeEdges},
		{"edge", ModeEdges},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.NotEqual(t, "unknown", got.String())
	}

	_, err := ParseMode("sepia")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestProcess_grayscale(t *testing.T) {
	src := []byte{255, 0, 0, 255, 0, 255, 0, 255}
	dst := make([]byte, len(src))
	Process(ModeGrayscale, dst, src, 2, 1)

	assert.Equal(t, []byte{76, 76, 76, 255, 149, 149, 149, 255}, dst)
}

func TestProcess_edges(t *testing.T) {
	// Left half black, right half white: a single vertical edge.
	const w, h = 8, 4
	src := make([]byte, w*h*frame.BytesPerPixel)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			i := (y*w + x) * frame.BytesPerPixel
			src[i], src[i+1], src[i+2], src[i+3] = 255, 255, 255, 255
		}
	}
	dst := make([]byte, len(src))
	Process(ModeEdges, dst, src, w, h)

	px := func(x, y int) byte { return dst[(y*w+x)*frame.BytesPerPixel] }
	assert.Equal(t, byte(0), px(0, 1), "flat region")
	assert.Equal(t, byte(0), px(w-1, 1), "flat region")
	assert.Equal(t, byte(255), px(w/2-1, 1), "edge")
	assert.Equal(t, byte(255), px(w/2, 1), "edge")
}

func TestSynthetic_Next(t *testing.T) {
	s := NewSynthetic(Config{Width: 16, Height: 8, Mode: ModeGrayscale, Limit: 3})

	for i := 0; i < 3; i++ {
		f, processing, err := s.Next(context.Background())
		require.NoError(t, err)
		require.NoError(t, f.Validate())
		assert.Equal(t, 16, f.Width)
		assert.GreaterOrEqual(t, processing, time.Duration(0))
		assert.Equal(t, f.Pixels[0], f.Pixels[1], "grayscale pixels have equal channels")
	}

	_, _, err := s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestSynthetic_framesDoNotShareBuffers(t *testing.T) {
	s := NewSynthetic(Config{Width: 4, Height: 4})
	a, _, err := s.Next(context.Background())
	require.NoError(t, err)
	b, _, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, &a.Pixels[0], &b.Pixels[0])
}

func TestSynthetic_Pacing(t *testing.T) {
	s := NewSynthetic(Config{Width: 2, Height: 2, FrameRate: 50})
	start := time.Now()
	for i := 0; i < 5; i++ {
		_, _, err := s.Next(context.Background())
		require.NoError(t, err)
	}
	// The first frame is immediate, then four 20ms slots.
	assert.GreaterOrEqual(t, time.Since(start), 70*time.Millisecond)
}

func TestSynthetic_NextCancelled(t *testing.T) {
	s := NewSynthetic(Config{Width: 2, Height: 2, FrameRate: 1})
	_, _, err := s.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSynthetic_Toggle(t *testing.T) {
	s := NewSynthetic(Config{Mode: ModeRaw, Width: 2, Height: 2})
	assert.Equal(t, ModeEdges, s.Toggle())
	assert.Equal(t, ModeRaw, s.Toggle())

	s.SetMode(ModeGrayscale)
	assert.Equal(t, ModeGrayscale, s.Mode())
	assert.Equal(t, ModeEdges, s.Toggle())
}
