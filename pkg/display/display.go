// Package display is the UI side of the preview: a single goroutine that
// owns the image currently on screen and pushes every new one to the
// registered renderers.
package display

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-camfilter/internal/log"
)

// Renderer puts an image on a surface. Renderers are called from the
// display goroutine only.
type Renderer interface {
	Render(img *image.RGBA)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(img *image.RGBA)

// Render calls f(img).
func (f RendererFunc) Render(img *image.RGBA) { f(img) }

// Stats is a snapshot of display counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Shown     uint64 `json:"shown"`
	Late      uint64 `json:"late"` // replaced in the inbox before being shown
}

// Display receives bitmaps from the capture worker through a one-slot inbox.
// Submit never blocks: a pending image that has not been shown yet is
// replaced by the newer one.
type Display struct {
	inbox  chan *image.RGBA
	logger *slog.Logger

	mu        sync.RWMutex
	renderers []Renderer
	latest    *image.RGBA

	submitted atomic.Uint64
	shown     atomic.Uint64
	late      atomic.Uint64
}

// Option configures a Display.
type Option func(*Display)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Display) {
		d.logger = logger
	}
}

// WithRenderer adds a renderer.
func WithRenderer(r Renderer) Option {
	return func(d *Display) {
		d.renderers = append(d.renderers, r)
	}
}

// New creates a display. Call Run to start showing images.
func New(opts ...Option) *Display {
	d := &Display{
		inbox: make(chan *image.RGBA, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = log.With("component", "display")
	}
	return d
}

// AddRenderer registers r. Safe to call while running.
func (d *Display) AddRenderer(r Renderer) {
	d.mu.Lock()
	d.renderers = append(d.renderers, r)
	d.mu.Unlock()
}

// Submit hands img to the display goroutine without blocking.
func (d *Display) Submit(img *image.RGBA) {
	if img == nil {
		return
	}
	d.submitted.Add(1)
	for {
		select {
		case d.inbox <- img:
			return
		default:
		}
		// Inbox full: discard the stale image and retry with the new one.
		select {
		case <-d.inbox:
			d.late.Add(1)
		default:
		}
	}
}

// Run shows submitted images until ctx is done.
func (d *Display) Run(ctx context.Context) {
	d.logger.Debug("display loop started")
	defer d.logger.Debug("display loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case img := <-d.inbox:
			d.show(img)
		}
	}
}

func (d *Display) show(img *image.RGBA) {
	d.mu.Lock()
	d.latest = img
	renderers := append([]Renderer(nil), d.renderers...)
	d.mu.Unlock()

	d.shown.Add(1)
	for _, r := range renderers {
		r.Render(img)
	}
}

// Latest returns the image currently on screen, or nil before the first one.
func (d *Display) Latest() *image.RGBA {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

// Stats returns a snapshot of the counters.
func (d *Display) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Shown:     d.shown.Load(),
		Late:      d.late.Load(),
	}
}
