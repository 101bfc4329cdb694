// internal/realtime/client.go

package realtime

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write an event to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest inbound frame we accept.
	maxMessageSize = 4096

	// Outbound buffer per client. A client that falls this far behind
	// starts losing events and will resync on rejoin.
	sendBuffer = 256
)

// Client is one websocket connection as the hub sees it.
type Client struct {
	// ID identifies the connection, not the player; the presence tracker
	// maps it to a (game, pseudo) identity after join_game.
	ID string

	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// Send queues an event for delivery. It never blocks; a full buffer drops
// the event.
func (c *Client) Send(e Event) {
	select {
	case c.send <- e:
	default:
	}
}

// readPump reads frames off the socket and hands them to the hub. It owns
// the read side of the connection and unregisters the client on exit.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var e Event
		if err := c.conn.ReadJSON(&e); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug().Err(err).Str("conn", c.ID).Msg("unexpected close")
			}
			return
		}
		c.hub.inbound <- inboundEvent{client: c, event: e}
	}
}

// writePump pumps queued events onto the socket and keeps the connection
// alive with pings. It owns the write side of the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel; the client was unregistered.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
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
