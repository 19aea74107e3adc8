package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Connection timing.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4 * 1024 // viewers only send control frames
)

// Conn is the subset of *websocket.Conn the hub needs.
type Conn interface {
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one viewer. Its send queue is owned by the hub, which closes it
// on leave or shutdown.
type Client struct {
	ID   string
	hub  *Hub
	conn Conn
	send chan Message
}

// NewClient joins conn to hub. A client created after the hub stopped
// starts out with its queue closed.
func NewClient(hub *Hub, conn Conn) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		hub:  hub,
		conn: conn,
		send: make(chan Message, clientBuffer),
	}
	select {
	case hub.joins <- c:
	case <-hub.done:
		close(c.send)
	}
	return c
}

// Run blocks until the viewer goes away and the writer has stopped touching
// the connection. The websocket handler releases conn when Run returns.
func (c *Client) Run() {
	delivered := make(chan struct{})
	go func() {
		defer close(delivered)
		c.deliver()
	}()
	c.watch()
	<-delivered
}

// Serve is the websocket handler for h.
func (h *Hub) Serve(conn *websocket.Conn) {
	NewClient(h, conn).Run()
}

// watch drains inbound frames so pongs are processed and a disconnect is
// noticed, then leaves the hub.
func (c *Client) watch() {
	defer func() {
		select {
		case c.hub.leaves <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	c.conn.SetReadLimit(maxMessageSize)
	extend("")
	c.conn.SetPongHandler(extend)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// deliver is the only writer on the connection.
func (c *Client) deliver() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	write := func(kind int, data []byte) error {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				write(websocket.CloseMessage, nil)
				return
			}
			if err := write(wireType(msg.Type), msg.Data); err != nil {
				return
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func wireType(t MessageType) int {
	if t == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
