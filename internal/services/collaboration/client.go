package collaboration

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"typeduet/internal/models"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one websocket connection. The participant identity lives for the
// length of the connection; membership is ephemeral by design.
type Client struct {
	ID     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	events *EventHandler

	// roomID is guarded by the hub's mutex.
	roomID string
}

func NewClient(id string, conn *websocket.Conn, hub *Hub, events *EventHandler) *Client {
	return &Client{
		ID:     id,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    hub,
		events: events,
	}
}

// ReadPump reads event envelopes off the connection and hands them to the
// dispatcher. Runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.events.HandleDisconnect(context.Background(), c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("participant %s: websocket error: %v", c.ID, err)
			}
			break
		}

		var env models.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Printf("participant %s: malformed event: %v", c.ID, err)
			continue
		}

		c.events.Dispatch(context.Background(), c, env)
	}
}

// WritePump drains the send channel onto the connection and keeps it alive
// with pings. A separate goroutine per connection so a slow client never
// blocks a broadcast.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
