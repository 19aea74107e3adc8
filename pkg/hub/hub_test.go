package hub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

type written struct {
	kind int
	data []byte
}

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	writes chan written
	gate   chan struct{} // when non-nil, writes wait on it
	hold   func()        // when non-nil, runs at the start of every write

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan written, 64), closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	if f.hold != nil {
		f.hold()
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-f.closed:
			return errors.New("closed")
		}
	}
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.writes <- written{kind: kind, data: data}
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) next(t *testing.T) written {
	t.Helper()
	select {
	case w := <-f.writes:
		return w
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a write")
		return written{}
	}
}

func runHub(t *testing.T, h *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	deadline := time.Now().Add(time.Second)
	for !h.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	t.Cleanup(cancel)
	return cancel
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBroadcastReachesClients(t *testing.T) {
	h := New("camera")
	runHub(t, h)

	a, b := newFakeConn(), newFakeConn()
	go NewClient(h, a).Run()
	go NewClient(h, b).Run()
	waitClients(t, h, 2)

	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, c := range []*fakeConn{a, b} {
		w := c.next(t)
		if w.kind != websocket.BinaryMessage || len(w.data) != 2 {
			t.Errorf("got kind %d len %d", w.kind, len(w.data))
		}
	}
	if st := h.Stats(); st.Broadcast != 1 || st.Clients != 2 {
		t.Errorf("stats: %+v", st)
	}
}

func TestOnConnectSendsInitialMessage(t *testing.T) {
	h := New("selection")
	h.OnConnect = func() (Message, bool) {
		return NewJSONMessage([]byte(`{"filter":"normal"}`)), true
	}
	runHub(t, h)

	c := newFakeConn()
	go NewClient(h, c).Run()

	w := c.next(t)
	if w.kind != websocket.TextMessage || string(w.data) != `{"filter":"normal"}` {
		t.Errorf("got kind %d data %s", w.kind, w.data)
	}
}

func TestSlowClientSkipsFrames(t *testing.T) {
	h := New("camera")
	runHub(t, h)

	slow := newFakeConn()
	slow.gate = make(chan struct{})
	go NewClient(h, slow).Run()
	waitClients(t, h, 1)

	// One message is stuck in WriteMessage, clientBuffer more are queued,
	// everything after that is skipped.
	for i := 0; i < 20; i++ {
		h.BroadcastBinary([]byte{byte(i)})
		time.Sleep(time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Stats().Skipped == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if h.Stats().Skipped == 0 {
		t.Fatal("expected skipped messages for a slow client")
	}
	if h.ClientCount() != 1 {
		t.Error("slow client should stay connected")
	}
	close(slow.gate)
}

func TestDisconnectUnregisters(t *testing.T) {
	h := New("camera")
	runHub(t, h)

	c := newFakeConn()
	go NewClient(h, c).Run()
	waitClients(t, h, 1)

	c.Close()
	waitClients(t, h, 0)
}

func TestBroadcastJSON(t *testing.T) {
	h := New("selection")
	runHub(t, h)

	c := newFakeConn()
	go NewClient(h, c).Run()
	waitClients(t, h, 1)

	if err := h.BroadcastJSON(map[string]string{"filter": "tonalEffect"}); err != nil {
		t.Fatal(err)
	}
	if w := c.next(t); string(w.data) != `{"filter":"tonalEffect"}` {
		t.Errorf("got %s", w.data)
	}
	if err := h.BroadcastJSON(func() {}); err == nil {
		t.Error("expected marshal error")
	}
}

func TestBroadcastWithoutLoopDrops(t *testing.T) {
	h := New("idle")
	for i := 0; i < broadcastBuffer+3; i++ {
		h.BroadcastBinary(nil)
	}
	if got := h.Stats().Dropped; got != 3 {
		t.Errorf("Dropped: got %d, want 3", got)
	}
}

func TestRunWaitsForWriter(t *testing.T) {
	h := New("camera")
	runHub(t, h)

	var returned, lateWrite atomic.Bool
	writing := make(chan struct{}, 1)
	c := newFakeConn()
	c.hold = func() {
		select {
		case writing <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		if returned.Load() {
			lateWrite.Store(true)
		}
	}

	done := make(chan struct{})
	go func() {
		NewClient(h, c).Run()
		returned.Store(true)
		close(done)
	}()
	waitClients(t, h, 1)

	h.BroadcastBinary([]byte{1})
	select {
	case <-writing:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never started")
	}
	c.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after disconnect")
	}
	time.Sleep(100 * time.Millisecond)
	if lateWrite.Load() {
		t.Error("connection written after Run returned")
	}
}

func TestRunReturnsWhenHubStops(t *testing.T) {
	h := New("selection")
	cancel := runHub(t, h)

	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		NewClient(h, c).Run()
		close(done)
	}()
	waitClients(t, h, 1)

	cancel()
	// The hub closes the queue; the writer sends a close frame and closes conn,
	// which ends the reader.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after hub shutdown")
	}
}

func TestMessageWireType(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want int
	}{
		{"selection event", NewJSONMessage([]byte(`{"filter":"Noir"}`)), websocket.TextMessage},
		{"camera frame", NewBinaryMessage([]byte{0xff, 0xd8}), websocket.BinaryMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wireType(tt.msg.Type); got != tt.want {
				t.Errorf("wireType() = %d, want %d", got, tt.want)
			}
		})
	}
}
