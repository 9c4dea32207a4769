package source

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for unrecognized names.
var ErrUnknownMode = errors.New("source: unknown processing mode")

// Mode selects the processing applied to each captured image.
type Mode int32

const (
	ModeRaw Mode = iota
	ModeGrayscale
	ModeEdges
)

func (m Mode) String() string {
	switch m {
	case ModeRaw:
		return "raw"
	case ModeGrayscale:
		return "grayscale"
	case ModeEdges:
		return "edges"
	default:
		return "unknown"
	}
}

// ParseMode maps a mode name to a Mode, ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return ModeRaw, nil
	case "grayscale", "gray":
		return ModeGrayscale, nil
	case "edges", "edge":
		return ModeEdges, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}
