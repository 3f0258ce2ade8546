package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection timing and limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64 // frames arrive at up to 30 Hz
)

// Client is one dashboard websocket.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// Serve attaches conn to the hub and blocks until the socket closes. Call
// it from the websocket handler.
func Serve(hub *Hub, conn *websocket.Conn) {
	c := &Client{hub: hub, conn: conn, send: make(chan Message, sendBuffer)}
	if !hub.join(c) {
		conn.Close()
		return
	}
	go c.write()
	c.read()
}

// read hands text messages to the hub's receiver and notices disconnects.
func (c *Client) read() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind == websocket.TextMessage {
			c.hub.receive(data)
		}
	}
}

// write is the only goroutine that writes to the socket.
func (c *Client) write() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			kind, data = websocket.TextMessage, msg.Data
			if msg.Binary {
				kind = websocket.BinaryMessage
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}

		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}
