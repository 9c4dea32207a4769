package source

import "framecast/internal/frame"

// Edge thresholds on the Sobel gradient magnitude. Magnitudes below
// edgeLow are suppressed, those above edgeHigh saturate.
const (
	edgeLow  = 50
	edgeHigh = 150
)

// Process applies mode to the RGBA image src and writes the result to dst.
// Both buffers hold w*h RGBA pixels and must not overlap.
func Process(mode Mode, dst, src []byte, w, h int) {
	switch mode {
	case ModeGrayscale:
		grayscale(dst, src, w, h)
	case ModeEdges:
		edges(dst, src, w, h)
	default:
		copy(dst, src[:w*h*frame.BytesPerPixel])
	}
}

// luma uses the integer BT.601 weights.
func luma(r, g, b byte) int {
	return (299*int(r) + 587*int(g) + 114*int(b)) / 1000
}

func grayscale(dst, src []byte, w, h int) {
	for i := 0; i < w*h*frame.BytesPerPixel; i += frame.BytesPerPixel {
		y := byte(luma(src[i], src[i+1], src[i+2]))
		dst[i], dst[i+1], dst[i+2], dst[i+3] = y, y, y, 0xff
	}
}

func edges(dst, src []byte, w, h int) {
	lum := make([]int, w*h)
	for p := range lum {
		i := p * frame.BytesPerPixel
		lum[p] = luma(src[i], src[i+1], src[i+2])
	}

	at := func(x, y int) int {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return lum[y*w+x]
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)

			// |gx|+|gy| approximates the magnitude without a square root.
			mag := abs(gx) + abs(gy)
			var v byte
			switch {
			case mag < edgeLow:
				v = 0
			case mag > edgeHigh:
				v = 0xff
			default:
				v = byte((mag - edgeLow) * 0xff / (edgeHigh - edgeLow))
			}

			i := (y*w + x) * frame.BytesPerPixel
			dst[i], dst[i+1], dst[i+2], dst[i+3] = v, v, v, 0xff
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
