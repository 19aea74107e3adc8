package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-camfilter/internal/log"
	"github.com/teslashibe/go-camfilter/pkg/frame"
)

// readErrorPause throttles a source that keeps failing reads.
const readErrorPause = 50 * time.Millisecond

// Stats is a snapshot of session counters.
type Stats struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Running   bool   `json:"running"`
	Captured  uint64 `json:"captured"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"` // overwritten in the mailbox before delivery
}

// Session connects a Source to a Handler.
//
// Two goroutines run while the session is up: a reader that pulls frames
// from the source as fast as it produces them, and a worker that calls the
// handler. They meet at a one-slot mailbox. A frame the worker has not
// picked up yet is overwritten by the next one, so the handler always sees
// the freshest frame and is never called concurrently with itself.
type Session struct {
	id     string
	src    Source
	auth   Authorizer
	logger *slog.Logger

	handler atomic.Pointer[Handler]

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
	running atomic.Bool

	slot mailbox

	captured  atomic.Uint64
	delivered atomic.Uint64
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithAuthorizer sets the permission gate.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Session) {
		s.auth = a
	}
}

// New creates a session for src. Without WithAuthorizer the session is
// always authorized.
func New(src Source, opts ...Option) *Session {
	s := &Session{
		id:   uuid.NewString(),
		src:  src,
		auth: StaticAuthorizer(StatusAuthorized),
	}
	s.slot.cond = sync.NewCond(&s.slot.mu)
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.With("component", "capture")
	}
	s.logger = s.logger.With("session", s.id[:8], "source", src.Name())
	return s
}

// SetHandler registers the frame callback. Frames delivered while no
// handler is set are discarded.
func (s *Session) SetHandler(h Handler) {
	s.handler.Store(&h)
}

// Start begins capture in the background, gated by the authorizer:
// an undecided state triggers RequestAccess, a restricted or denied state
// leaves the session idle with no error. Setup failures are logged and the
// session simply does not start. Start returns immediately.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	status := s.auth.Status()
	switch status {
	case StatusNotDetermined:
		go func() {
			granted, err := s.auth.RequestAccess(ctx)
			if err != nil {
				s.logger.Error("camera access request failed", "error", err)
				return
			}
			if !granted {
				s.logger.Info("camera access not granted")
				return
			}
			s.run(ctx)
		}()
	case StatusAuthorized:
		go s.run(ctx)
	default:
		s.logger.Info("camera unavailable, not starting", "status", status.String())
	}
}

func (s *Session) run(parent context.Context) {
	if err := s.src.Open(parent); err != nil {
		s.logger.Error("camera setup failed", "error", err)
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.closeSource()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.running.Store(true)
	s.mu.Unlock()

	context.AfterFunc(ctx, s.slot.close)

	s.logger.Info("capture session started")
	go s.work()
	s.read(ctx)
}

// read runs on the reader goroutine and owns the source.
func (s *Session) read(ctx context.Context) {
	defer func() {
		s.running.Store(false)
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
		s.closeSource()
		s.logger.Info("capture session stopped")
	}()

	var seq uint64
	for {
		f, err := s.src.Read(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, ErrClosed) {
				s.slot.close()
				return
			}
			s.logger.Debug("frame read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorPause):
			}
			continue
		}
		if f == nil {
			continue
		}

		seq++
		f.Seq = seq
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now()
		}
		s.captured.Add(1)
		s.slot.publish(f)
	}
}

// work runs on the worker goroutine: the only caller of the handler.
func (s *Session) work() {
	for {
		f := s.slot.take()
		if f == nil {
			return
		}
		if h := s.handler.Load(); h != nil && *h != nil {
			(*h)(f)
		}
		s.delivered.Add(1)
	}
}

func (s *Session) closeSource() {
	if err := s.src.Close(); err != nil {
		s.logger.Debug("source close failed", "error", err)
	}
}

// Stop asks the session to shut down and returns without waiting.
// The source is closed by the reader goroutine once it notices.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Running reports whether frames are being captured.
func (s *Session) Running() bool {
	return s.running.Load()
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	return Stats{
		ID:        s.id,
		Source:    s.src.Name(),
		Running:   s.running.Load(),
		Captured:  s.captured.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.slot.dropped.Load(),
	}
}

// mailbox is a single-slot buffer with overwrite semantics.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  *frame.Frame
	closed bool

	dropped atomic.Uint64
}

func (m *mailbox) publish(f *frame.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.frame != nil {
		m.dropped.Add(1)
	}
	m.frame = f
	m.cond.Signal()
}

// take blocks until a frame is available, or returns nil once closed.
func (m *mailbox) take() *frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.frame == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return nil
	}
	f := m.frame
	m.frame = nil
	return f
}

func (m *mailbox) close() {
	m.mu.Lock()
	m.closed = true
	m.frame = nil
	m.cond.Broadcast()
	m.mu.Unlock()
}
