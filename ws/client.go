package ws

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// Pump timing constants. PongWait must exceed PingInterval so a healthy
// connection never misses its deadline.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 50 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// Client owns one websocket connection. All writes go through the Send
// channel and a single write pump; the connection itself is never written
// from two goroutines.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	done   chan struct{}
	log    *slog.Logger
}

func NewClient(userID string, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		log:    log,
	}
}

// Close stops the write pump. The Send channel is never closed: a sink may
// race a late delivery against teardown, and enqueueing after Close must
// stay safe.
func (c *Client) Close() {
	close(c.done)
}

// ReadPump consumes inbound frames until the connection drops, then runs the
// teardown hook. Blocks; run on the connection's goroutine.
func (c *Client) ReadPump(handle func(*Client, []byte), teardown func(*Client)) {
	defer func() {
		teardown(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}
		handle(c, message)
	}
}

// WritePump drains the Send channel onto the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Enqueue marshals a frame onto the send buffer. A full buffer drops the
// frame and reports false so the caller can treat the viewer as lost.
func (c *Client) Enqueue(frame any) bool {
	data, err := json.Marshal(frame)
	if err != nil {
		c.log.Error("Failed to marshal outbound frame", "error", err)
		return false
	}

	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}
