package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/filter"
	"github.com/teslashibe/go-camfilter/pkg/frame"
)

// recordingSink collects every submitted bitmap.
type recordingSink struct {
	mu     sync.Mutex
	images []*image.RGBA
}

func (s *recordingSink) Submit(img *image.RGBA) {
	s.mu.Lock()
	s.images = append(s.images, img)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.images)
}

func sourceFrame(w, h int) *frame.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 31), G: uint8(y * 23), B: uint8(200 - x*y), A: 255})
		}
	}
	return frame.FromRGBA(img)
}

func newTestPipeline(sink Sink, opts ...Option) (*Pipeline, *filter.Selection) {
	sel := filter.NewSelection()
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	return New(sel, sink, opts...), sel
}

func TestProcessPreservesExtent(t *testing.T) {
	f := sourceFrame(12, 7)
	for _, id := range filter.All() {
		t.Run(id.String(), func(t *testing.T) {
			out, err := Process(f, id)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if out.Bounds() != f.Bounds() {
				t.Errorf("extent: got %v, want %v", out.Bounds(), f.Bounds())
			}
		})
	}
}

func TestProcessIdentityLaw(t *testing.T) {
	f := sourceFrame(9, 4)

	view, err := frame.View(f)
	if err != nil {
		t.Fatal(err)
	}
	direct, err := frame.Render(view)
	if err != nil {
		t.Fatal(err)
	}

	out, err := Process(f, filter.Normal)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !bytes.Equal(out.Pix, direct.Pix) {
		t.Error("identity output differs from a direct bitmap conversion")
	}

	// Unknown ids resolve to identity as well.
	unknown, err := Process(f, filter.ID(0))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(unknown.Pix, direct.Pix) {
		t.Error("unknown id did not pass the frame through")
	}
}

func TestProcessDoesNotAliasFrame(t *testing.T) {
	f := sourceFrame(4, 4)
	out, err := Process(f, filter.Normal)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]byte(nil), out.Pix...)
	for i := range f.Pix {
		f.Pix[i] = 0
	}
	if !bytes.Equal(out.Pix, before) {
		t.Error("bitmap changed after the capture buffer was reused")
	}
}

func TestProcessDeterministic(t *testing.T) {
	f := sourceFrame(10, 10)
	for _, id := range filter.All() {
		a, err := Process(f, id)
		if err != nil {
			t.Fatal(err)
		}
		b, err := Process(f, id)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(a.Pix, b.Pix) {
			t.Errorf("%s: outputs differ between runs", id)
		}
	}
}

func TestHandleFrameDropsMalformedFrame(t *testing.T) {
	sink := &recordingSink{}
	p, sel := newTestPipeline(sink)
	sel.Set(filter.Tonal)

	malformed := &frame.Frame{Pix: make([]byte, 8), Width: 10, Height: 10, Stride: 40}
	p.HandleFrame(malformed)
	p.HandleFrame(nil)
	// Sizes whose products overflow int.
	p.HandleFrame(&frame.Frame{Pix: make([]byte, 16), Width: 1, Height: 2, Stride: math.MaxInt - 1})
	p.HandleFrame(&frame.Frame{Pix: make([]byte, 16), Width: math.MaxInt / 2, Height: 1, Stride: math.MaxInt - 3})

	if got := sink.count(); got != 0 {
		t.Errorf("sink got %d submissions, want 0", got)
	}
	if st := p.Stats(); st.Dropped != 4 || st.Processed != 0 {
		t.Errorf("stats: %+v", st)
	}
}

func TestHandleFrameDropsWhenOperationHasNoOutput(t *testing.T) {
	lookup := func(id filter.ID) filter.Spec {
		spec := filter.Lookup(id)
		if id == filter.Tonal {
			spec.Apply = func(image.Image) (image.Image, error) { return nil, nil }
		}
		if id == filter.Noir {
			spec.Apply = func(image.Image) (image.Image, error) { return nil, filter.ErrNoOutput }
		}
		return spec
	}

	sink := &recordingSink{}
	p, sel := newTestPipeline(sink, WithLookup(lookup))
	f := sourceFrame(6, 6)

	p.HandleFrame(f)
	if got := sink.count(); got != 1 {
		t.Fatalf("identity frame: got %d submissions, want 1", got)
	}

	for _, id := range []filter.ID{filter.Tonal, filter.Noir} {
		sel.Set(id)
		p.HandleFrame(f)
		if got := sink.count(); got != 1 {
			t.Errorf("%s: sink got %d submissions, want still 1", id, got)
		}
		if _, err := p.Process(f, id); !errors.Is(err, filter.ErrNoOutput) {
			t.Errorf("%s: Process error %v, want ErrNoOutput", id, err)
		}
	}
	if st := p.Stats(); st.Dropped != 2 || st.Processed != 1 {
		t.Errorf("stats: %+v", st)
	}
}

func TestSelectionSequenceEndToEnd(t *testing.T) {
	sink := &recordingSink{}
	p, sel := newTestPipeline(sink)
	f := sourceFrame(8, 8)

	for _, id := range []filter.ID{filter.Normal, filter.Tonal, filter.Normal} {
		sel.Set(id)
		p.HandleFrame(f)
	}

	if got := sink.count(); got != 3 {
		t.Fatalf("got %d submissions, want 3", got)
	}
	first, second, third := sink.images[0], sink.images[1], sink.images[2]
	if !bytes.Equal(first.Pix, third.Pix) {
		t.Error("first and third frames should be pixel-identical")
	}
	if bytes.Equal(first.Pix, second.Pix) {
		t.Error("tonal frame should differ from identity")
	}
}

func TestSinkFunc(t *testing.T) {
	var calls int
	p, _ := newTestPipeline(SinkFunc(func(*image.RGBA) { calls++ }))
	p.HandleFrame(sourceFrame(2, 2))
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}
