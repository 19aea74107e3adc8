package webcam

import (
	"context"
	"errors"
	"testing"

	"github.com/teslashibe/go-camfilter/pkg/capture"
)

func TestName(t *testing.T) {
	s := New(Config{Device: 2})
	if got := s.Name(); got != "webcam:/dev/video2" {
		t.Errorf("Name() = %q", got)
	}
}

func TestReadBeforeOpen(t *testing.T) {
	s := New(Config{})
	if _, err := s.Read(context.Background()); !errors.Is(err, capture.ErrNotOpen) {
		t.Errorf("Read() error = %v, want ErrNotOpen", err)
	}
}

func TestCloseWithoutOpen(t *testing.T) {
	s := New(Config{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := s.Open(context.Background()); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("Open() after Close = %v, want ErrClosed", err)
	}
	if _, err := s.Read(context.Background()); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("Read() after Close = %v, want ErrClosed", err)
	}
}

func TestCanceledContext(t *testing.T) {
	s := New(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Open(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() = %v, want context.Canceled", err)
	}
}
