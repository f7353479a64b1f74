package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Keepalive timing. A client that stops answering pings is dropped after
// pongWait.
const (
	writeWait  = 10 * time.Second
	pongWait   = time.Minute
	pingPeriod = pongWait * 9 / 10

	// Viewers only send control frames.
	readLimit = 4 << 10

	// Messages a client may fall behind before the hub drops it.
	sendBuffer = 64
)

// Client is one websocket viewer attached to a hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient attaches conn to h. The greeting messages are queued ahead of
// any broadcast, so a viewer sees the current state first.
func NewClient(h *Hub, conn *websocket.Conn, greeting ...Message) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer+len(greeting))}
	for _, m := range greeting {
		c.send <- m
	}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

// Run serves the connection until either side closes it. Call it from the
// websocket handler; fiber closes the connection when the handler returns.
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	defer c.leave()

	c.conn.SetReadLimit(readLimit)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
	extend("")
	c.conn.SetPongHandler(extend)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// writeLoop owns all writes on the connection.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if c.write(websocket.TextMessage, msg) != nil {
				return
			}
		case <-ping.C:
			if c.write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(kind, data)
}
