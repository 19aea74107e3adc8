// Package pipeline turns captured frames into display bitmaps using the
// currently selected filter.
//
// Every failure on the per-frame path is a silent drop: the frame is counted,
// logged at debug level, and the display keeps showing the previous image.
// Losing a frame is always preferable to stalling capture.
package pipeline

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/filter"
	"github.com/teslashibe/go-camfilter/pkg/frame"
)

// Sink receives processed bitmaps. Submit must not block.
type Sink interface {
	Submit(img *image.RGBA)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(img *image.RGBA)

// Submit calls f(img).
func (f SinkFunc) Submit(img *image.RGBA) { f(img) }

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Processed   uint64        `json:"processed"`
	Dropped     uint64        `json:"dropped"`
	LastLatency time.Duration `json:"last_latency_ns"`
}

// Pipeline applies the current selection to each delivered frame.
type Pipeline struct {
	selection *filter.Selection
	sink      Sink
	lookup    func(filter.ID) filter.Spec
	logger    *slog.Logger

	processed   atomic.Uint64
	dropped     atomic.Uint64
	lastLatency atomic.Int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithLookup replaces the filter table lookup.
func WithLookup(lookup func(filter.ID) filter.Spec) Option {
	return func(p *Pipeline) {
		p.lookup = lookup
	}
}

// New creates a pipeline reading from sel and submitting to sink.
func New(sel *filter.Selection, sink Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		selection: sel,
		sink:      sink,
		lookup:    filter.Lookup,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.With("component", "pipeline")
	}
	return p
}

// Process filters one frame with the given filter and renders the result.
// It is a pure function of its inputs.
func Process(f *frame.Frame, id filter.ID) (*image.RGBA, error) {
	return process(f, filter.Lookup(id))
}

func process(f *frame.Frame, spec filter.Spec) (*image.RGBA, error) {
	view, err := frame.View(f)
	if err != nil {
		return nil, fmt.Errorf("wrap frame: %w", err)
	}

	var working image.Image = view
	if !spec.IsIdentity() {
		out, err := spec.Apply(view)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", spec.Operation, err)
		}
		if out == nil {
			return nil, fmt.Errorf("apply %s: %w", spec.Operation, filter.ErrNoOutput)
		}
		working = out
	}

	bitmap, err := frame.Render(working)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return bitmap, nil
}

// Process is the method form of Process using the pipeline's lookup table.
func (p *Pipeline) Process(f *frame.Frame, id filter.ID) (*image.RGBA, error) {
	return process(f, p.lookup(id))
}

// HandleFrame is the capture callback. It reads the selection once, processes
// the frame and submits the bitmap. Exactly one submission per successful
// frame, none for a dropped one.
func (p *Pipeline) HandleFrame(f *frame.Frame) {
	start := time.Now()
	id := p.selection.Current()

	bitmap, err := p.Process(f, id)
	if err != nil {
		p.dropped.Add(1)
		var seq uint64
		if f != nil {
			seq = f.Seq
		}
		p.logger.Debug("frame dropped", "seq", seq, "filter", id.String(), "error", err)
		return
	}

	p.processed.Add(1)
	p.lastLatency.Store(int64(time.Since(start)))
	p.sink.Submit(bitmap)
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Processed:   p.processed.Load(),
		Dropped:     p.dropped.Load(),
		LastLatency: time.Duration(p.lastLatency.Load()),
	}
}
