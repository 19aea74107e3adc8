package display

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-camfilter/internal/log"
)

type countingRenderer struct {
	mu     sync.Mutex
	images []*image.RGBA
	done   chan struct{}
}

func newCountingRenderer() *countingRenderer {
	return &countingRenderer{done: make(chan struct{}, 64)}
}

func (r *countingRenderer) Render(img *image.RGBA) {
	r.mu.Lock()
	r.images = append(r.images, img)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *countingRenderer) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for render")
	}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	frames [][]byte
}

func (b *recordingBroadcaster) BroadcastBinary(data []byte) {
	b.mu.Lock()
	b.frames = append(b.frames, data)
	b.mu.Unlock()
}

func img(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestSubmitNeverBlocks(t *testing.T) {
	d := New(WithLogger(log.Discard()))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Submit(img(2, 2))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked with no display loop running")
	}

	st := d.Stats()
	if st.Submitted != 100 {
		t.Errorf("Submitted: got %d, want 100", st.Submitted)
	}
	if st.Late != 99 {
		t.Errorf("Late: got %d, want 99", st.Late)
	}
}

func TestLatestWinsInInbox(t *testing.T) {
	r := newCountingRenderer()
	d := New(WithLogger(log.Discard()), WithRenderer(r))

	first, second := img(1, 1), img(3, 3)
	d.Submit(first)
	d.Submit(second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	r.wait(t)
	if got := d.Latest(); got != second {
		t.Errorf("Latest: got %v, want the newer image", got.Bounds())
	}
	if d.Stats().Shown != 1 {
		t.Errorf("Shown: got %d, want 1", d.Stats().Shown)
	}
}

func TestRunRendersEachSubmission(t *testing.T) {
	r := newCountingRenderer()
	d := New(WithLogger(log.Discard()))
	d.AddRenderer(r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if d.Latest() != nil {
		t.Fatal("Latest should be nil before the first frame")
	}
	for i := 1; i <= 3; i++ {
		d.Submit(img(i, i))
		r.wait(t)
	}
	if got := d.Latest().Bounds().Dx(); got != 3 {
		t.Errorf("Latest width: got %d, want 3", got)
	}
	d.Submit(nil)
	if d.Stats().Submitted != 3 {
		t.Errorf("nil submissions should be ignored, stats %+v", d.Stats())
	}
}

func TestJPEGRenderer(t *testing.T) {
	b := &recordingBroadcaster{}
	r := NewJPEGRenderer(0, b)
	if r.quality != DefaultQuality {
		t.Errorf("quality: got %d, want default", r.quality)
	}
	if r.Last() != nil {
		t.Error("Last should be nil before the first render")
	}

	r.Render(img(8, 6))

	if len(b.frames) != 1 {
		t.Fatalf("broadcasts: got %d, want 1", len(b.frames))
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(r.Last()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 6 {
		t.Errorf("size: got %dx%d", cfg.Width, cfg.Height)
	}
	if !bytes.Equal(r.Last(), b.frames[0]) {
		t.Error("Last differs from the broadcast frame")
	}
}
