package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-camfilter/pkg/frame"
)

// PatternSource is a synthetic camera: a colour gradient with a bright bar
// that moves one step per frame. Frame n is the same on every run.
type PatternSource struct {
	width    int
	height   int
	interval time.Duration

	mu     sync.Mutex
	open   bool
	closed bool
	n      int
	next   time.Time
}

// NewPatternSource creates a source producing width x height frames at fps.
// fps <= 0 produces frames as fast as they are read.
func NewPatternSource(width, height, fps int) *PatternSource {
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &PatternSource{width: width, height: height, interval: interval}
}

// Name implements Source.
func (p *PatternSource) Name() string {
	return fmt.Sprintf("pattern:%dx%d", p.width, p.height)
}

// Open implements Source.
func (p *PatternSource) Open(ctx context.Context) error {
	if p.width <= 0 || p.height <= 0 {
		return fmt.Errorf("capture: pattern size %dx%d", p.width, p.height)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.open = true
	p.next = time.Now()
	return nil
}

// Read implements Source. It paces itself to the configured rate.
func (p *PatternSource) Read(ctx context.Context) (*frame.Frame, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if !p.open {
		p.mu.Unlock()
		return nil, ErrNotOpen
	}
	wait := time.Until(p.next)
	p.next = p.next.Add(p.interval)
	if wait < 0 && p.interval > 0 {
		// Fell behind; resync instead of bursting.
		p.next = time.Now().Add(p.interval)
	}
	n := p.n
	p.n++
	p.mu.Unlock()

	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return PatternFrame(p.width, p.height, n), nil
}

// Close implements Source.
func (p *PatternSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.open = false
	return nil
}

// PatternFrame renders frame n of the test pattern.
func PatternFrame(width, height, n int) *frame.Frame {
	f := frame.New(width, height)
	barWidth := width / 8
	if barWidth < 1 {
		barWidth = 1
	}
	barX := (n * 4) % width

	for y := 0; y < height; y++ {
		row := f.Pix[y*f.Stride:]
		for x := 0; x < width; x++ {
			i := x * frame.BytesPerPixel
			r := uint8(x * 255 / max(width-1, 1))
			g := uint8(y * 255 / max(height-1, 1))
			b := uint8(128 + (x+y)%64)
			if x >= barX && x < barX+barWidth {
				r, g, b = 250, 250, 250
			}
			row[i+0] = b
			row[i+1] = g
			row[i+2] = r
			row[i+3] = 255
		}
	}
	f.Timestamp = time.Now()
	return f
}
