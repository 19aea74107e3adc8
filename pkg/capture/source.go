// Package capture owns the camera side of the preview: permission gating,
// session startup and shutdown, and delivery of raw BGRA frames to a single
// serialized callback.
package capture

import (
	"context"
	"errors"

	"github.com/teslashibe/go-camfilter/pkg/frame"
)

// Sentinel errors.
var (
	// ErrNotOpen is returned when reading from a source that was never opened.
	ErrNotOpen = errors.New("capture: source not open")

	// ErrClosed is returned when reading from a closed source.
	ErrClosed = errors.New("capture: source closed")

	// ErrNoFrame is returned when the device produced an empty read.
	ErrNoFrame = errors.New("capture: no frame")
)

// Source produces BGRA frames at its native rate. Read blocks until the next
// frame is available. A Source is used from one goroutine at a time.
type Source interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (*frame.Frame, error)
	Close() error
	Name() string
}

// Handler receives delivered frames. The frame is only valid for the
// duration of the call.
type Handler func(f *frame.Frame)
