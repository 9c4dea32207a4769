package frame

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradient fills a frame with a diagonal gradient so JPEG has real content.
func gradient(seq uint64, w, h int) Frame {
	f := New(seq, w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * BytesPerPixel
			f.Pixels[i] = uint8(x * 255 / w)
			f.Pixels[i+1] = uint8(y * 255 / h)
			f.Pixels[i+2] = uint8((x + y) % 256)
			f.Pixels[i+3] = 0xff
		}
	}
	return f
}

func TestJPEGCodec_Encode_roundTripTextLayer(t *testing.T) {
	codec := NewJPEGCodec(DefaultQuality)
	enc, err := codec.Encode(gradient(7, 64, 48))
	require.NoError(t, err)

	assert.Equal(t, uint64(7), enc.Seq)
	assert.Equal(t, 64, enc.Width)
	assert.Equal(t, 48, enc.Height)
	require.NotEmpty(t, enc.Data)

	decoded, err := DecodeData(enc.Data)
	require.NoError(t, err)
	assert.Equal(t, enc.JPEG, decoded, "text layer must reproduce the exact compressed bytes")
}

func TestJPEGCodec_Encode_producesDecodableImage(t *testing.T) {
	enc, err := NewJPEGCodec(DefaultQuality).Encode(gradient(1, 32, 16))
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(enc.JPEG))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestJPEGCodec_Encode_qualityTradesSize(t *testing.T) {
	f := gradient(1, 128, 128)
	low, err := NewJPEGCodec(10).Encode(f)
	require.NoError(t, err)
	high, err := NewJPEGCodec(100).Encode(f)
	require.NoError(t, err)

	assert.Less(t, len(low.JPEG), len(high.JPEG))
}

func TestNewJPEGCodec_qualityBounds(t *testing.T) {
	assert.Equal(t, DefaultQuality, NewJPEGCodec(0).Quality())
	assert.Equal(t, DefaultQuality, NewJPEGCodec(101).Quality())
	assert.Equal(t, 55, NewJPEGCodec(55).Quality())
}

func TestJPEGCodec_Encode_invalidFrame(t *testing.T) {
	codec := NewJPEGCodec(DefaultQuality)

	_, err := codec.Encode(Frame{Width: 0, Height: 10})
	assert.True(t, errors.Is(err, ErrInvalidFrame))

	_, err = codec.Encode(Frame{Width: 4, Height: 4, Pixels: make([]byte, 10)})
	assert.True(t, errors.Is(err, ErrInvalidFrame))
}

func TestDecodeData_invalid(t *testing.T) {
	_, err := DecodeData("not*base64")
	assert.Error(t, err)
}

func TestFrame_RGBA_sharesPixels(t *testing.T) {
	f := gradient(1, 4, 4)
	img, err := f.RGBA()
	require.NoError(t, err)
	assert.Same(t, &f.Pixels[0], &img.Pix[0])
	assert.Equal(t, 16, img.Stride)
}
