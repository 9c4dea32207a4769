package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
)

// DefaultQuality is the JPEG quality used for every viewer.
const DefaultQuality = 80

// EncodedFrame is the transport representation of a Frame. It is derived per
// broadcast and never cached.
type EncodedFrame struct {
	Seq    uint64
	Width  int
	Height int

	// JPEG holds the compressed image.
	JPEG []byte

	// Data is JPEG in standard padded base64, safe to embed in a text message.
	Data string
}

// Encoder turns a frame into its transport representation.
type Encoder interface {
	Encode(f Frame) (EncodedFrame, error)
}

// JPEGCodec compresses frames as JPEG at a fixed quality and base64-encodes
// the result. It holds no per-frame state and is safe for concurrent use.
type JPEGCodec struct {
	quality int
}

// NewJPEGCodec returns a codec with the given quality. Values outside 1..100
// select DefaultQuality.
func NewJPEGCodec(quality int) *JPEGCodec {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEGCodec{quality: quality}
}

// Quality returns the JPEG quality in use.
func (c *JPEGCodec) Quality() int {
	return c.quality
}

// Encode implements Encoder.
func (c *JPEGCodec) Encode(f Frame) (EncodedFrame, error) {
	img, err := f.RGBA()
	if err != nil {
		return EncodedFrame{}, err
	}

	// Edge-detected frames compress well; an eighth of the raw size avoids most regrowth.
	buf := bytes.NewBuffer(make([]byte, 0, len(f.Pixels)/8))
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return EncodedFrame{}, fmt.Errorf("frame: jpeg encode seq %d: %w", f.Seq, err)
	}

	compressed := buf.Bytes()
	return EncodedFrame{
		Seq:    f.Seq,
		Width:  f.Width,
		Height: f.Height,
		JPEG:   compressed,
		Data:   base64.StdEncoding.EncodeToString(compressed),
	}, nil
}

// DecodeData reverses the text-safe layer of an EncodedFrame, returning the
// compressed bytes exactly as the codec produced them.
func DecodeData(data string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("frame: decode data: %w", err)
	}
	return b, nil
}
