package display

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-camfilter/internal/log"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 80

// Broadcaster delivers encoded frames to remote viewers.
type Broadcaster interface {
	BroadcastBinary(data []byte)
}

// JPEGRenderer encodes each shown image and broadcasts it. It keeps the last
// encoded frame for one-shot fetches.
type JPEGRenderer struct {
	quality int
	out     Broadcaster
	logger  *slog.Logger

	mu   sync.RWMutex
	last []byte
}

// NewJPEGRenderer creates a renderer. out may be nil to only keep the last frame.
func NewJPEGRenderer(quality int, out Broadcaster) *JPEGRenderer {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEGRenderer{
		quality: quality,
		out:     out,
		logger:  log.With("component", "jpeg"),
	}
}

// Render implements Renderer.
func (r *JPEGRenderer) Render(img *image.RGBA) {
	data, err := EncodeJPEG(img, r.quality)
	if err != nil {
		// Keep the previous frame on screen.
		r.logger.Debug("jpeg encode failed", "error", err)
		return
	}

	r.mu.Lock()
	r.last = data
	r.mu.Unlock()

	if r.out != nil {
		r.out.BroadcastBinary(data)
	}
}

// Last returns a copy of the most recently encoded frame, or nil.
func (r *JPEGRenderer) Last() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.last == nil {
		return nil
	}
	out := make([]byte, len(r.last))
	copy(out, r.last)
	return out
}

// EncodeJPEG converts an RGBA image to JPEG bytes.
func EncodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
