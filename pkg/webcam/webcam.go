// Package webcam reads frames from a local camera through OpenCV.
package webcam

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-camfilter/pkg/capture"
	"github.com/teslashibe/go-camfilter/pkg/frame"
)

// Config for a webcam source
type Config struct {
	Device   int  // OpenCV device index, /dev/videoN on Linux
	Width    int  // requested capture width
	Height   int  // requested capture height
	FPS      int  // requested frame rate
	Portrait bool // rotate frames 90 degrees clockwise
}

// Source is a capture.Source backed by gocv.VideoCapture.
type Source struct {
	cfg Config

	mu     sync.Mutex
	cam    *gocv.VideoCapture
	raw    gocv.Mat
	bgra   gocv.Mat
	turned gocv.Mat
	closed bool
}

var _ capture.Source = (*Source)(nil)

// New creates a webcam source. The device is not touched until Open.
func New(cfg Config) *Source {
	return &Source{cfg: cfg}
}

// Name implements capture.Source.
func (s *Source) Name() string {
	return fmt.Sprintf("webcam:/dev/video%d", s.cfg.Device)
}

// Open implements capture.Source.
func (s *Source) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return capture.ErrClosed
	}
	if s.cam != nil {
		return nil
	}

	cam, err := gocv.OpenVideoCapture(s.cfg.Device)
	if err != nil {
		return fmt.Errorf("webcam: open device %d: %w", s.cfg.Device, err)
	}
	if !cam.IsOpened() {
		cam.Close()
		return fmt.Errorf("webcam: device %d not available", s.cfg.Device)
	}

	if s.cfg.Width > 0 {
		cam.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
	}
	if s.cfg.Height > 0 {
		cam.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	}
	if s.cfg.FPS > 0 {
		cam.Set(gocv.VideoCaptureFPS, float64(s.cfg.FPS))
	}

	s.cam = cam
	s.raw = gocv.NewMat()
	s.bgra = gocv.NewMat()
	s.turned = gocv.NewMat()
	return nil
}

// Read implements capture.Source. The returned frame owns its pixels.
func (s *Source) Read(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, capture.ErrClosed
	}
	if s.cam == nil {
		return nil, capture.ErrNotOpen
	}

	if ok := s.cam.Read(&s.raw); !ok || s.raw.Empty() {
		return nil, capture.ErrNoFrame
	}

	gocv.CvtColor(s.raw, &s.bgra, gocv.ColorBGRToBGRA)
	out := s.bgra
	if s.cfg.Portrait {
		gocv.Rotate(s.bgra, &s.turned, gocv.Rotate90Clockwise)
		out = s.turned
	}

	f := frame.New(out.Cols(), out.Rows())
	if err := copyMat(f, out); err != nil {
		return nil, err
	}
	return f, nil
}

// Close implements capture.Source. It is safe to call more than once.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.cam == nil {
		return nil
	}
	s.raw.Close()
	s.bgra.Close()
	s.turned.Close()
	err := s.cam.Close()
	s.cam = nil
	return err
}

// copyMat copies a CV_8UC4 mat into f row by row, honouring both strides.
func copyMat(f *frame.Frame, m gocv.Mat) error {
	data, err := m.DataPtrUint8()
	if err != nil {
		return fmt.Errorf("webcam: %w", err)
	}
	row := f.Width * 4
	step := m.Step()
	if step < row || len(data) < step*(f.Height-1)+row {
		return fmt.Errorf("webcam: mat step %d too small for width %d", step, f.Width)
	}
	for y := 0; y < f.Height; y++ {
		copy(f.Pix[y*f.Stride:y*f.Stride+row], data[y*step:y*step+row])
	}
	return nil
}
