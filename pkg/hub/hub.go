package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-camfilter/internal/log"
)

// Buffer sizes. Frames are only useful while fresh, so queues stay short.
const (
	broadcastBuffer = 4
	clientBuffer    = 2
)

// Stats is a snapshot of hub counters.
type Stats struct {
	Name      string `json:"name"`
	Clients   int    `json:"clients"`
	Broadcast uint64 `json:"broadcast"`
	Dropped   uint64 `json:"dropped"` // never queued because the hub was busy
	Skipped   uint64 `json:"skipped"` // not sent to one slow client
}

// Hub fans messages out to websocket viewers of one stream.
type Hub struct {
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	members map[*Client]struct{}

	broadcast chan Message
	joins     chan *Client
	leaves    chan *Client
	done      chan struct{}

	// OnConnect, when set, returns a message sent to each new client first.
	OnConnect func() (Message, bool)

	running atomic.Bool
	sent    atomic.Uint64
	dropped atomic.Uint64
	skipped atomic.Uint64
}

// New creates a hub for the named stream. Call Run to start it.
func New(name string) *Hub {
	return &Hub{
		name:      name,
		logger:    log.With("component", "hub", "hub", name),
		members:   make(map[*Client]struct{}),
		broadcast: make(chan Message, broadcastBuffer),
		joins:     make(chan *Client),
		leaves:    make(chan *Client),
		done:      make(chan struct{}),
	}
}

// Run owns membership and fan-out until ctx is done. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.joins:
			n := h.add(c)
			if h.OnConnect != nil {
				if msg, ok := h.OnConnect(); ok {
					c.send <- msg
				}
			}
			h.logger.Info("client connected", "client", c.ID, "total", n)
		case c := <-h.leaves:
			n := h.remove(c)
			h.logger.Info("client disconnected", "client", c.ID, "remaining", n)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[c] = struct{}{}
	return len(h.members)
}

// remove closes c's queue at most once.
func (h *Hub) remove(c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.members[c]; ok {
		delete(h.members, c)
		close(c.send)
	}
	return len(h.members)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.members {
		delete(h.members, c)
		close(c.send)
	}
}

// fanOut queues msg for every member. A member whose queue is full skips it.
func (h *Hub) fanOut(msg Message) {
	h.sent.Add(1)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.members {
		select {
		case c.send <- msg:
		default:
			h.skipped.Add(1)
		}
	}
}

// Broadcast queues msg for fan-out without blocking. When the queue is
// full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
		h.logger.Debug("broadcast channel full, dropping message")
	}
}

// BroadcastJSON marshals v and broadcasts it as a text message.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("hub %s: %w", h.name, err)
	}
	h.Broadcast(NewJSONMessage(data))
	return nil
}

// BroadcastBinary broadcasts binary data (camera frames)
func (h *Hub) BroadcastBinary(data []byte) {
	h.Broadcast(NewBinaryMessage(data))
}

// ClientCount reports how many viewers are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	n := len(h.members)
	h.mu.RUnlock()
	return n
}

// IsRunning returns whether the hub loop is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats returns a snapshot of the counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Name:      h.name,
		Clients:   h.ClientCount(),
		Broadcast: h.sent.Load(),
		Dropped:   h.dropped.Load(),
		Skipped:   h.skipped.Load(),
	}
}
