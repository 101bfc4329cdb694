// internal/realtime/hub.go
//
// The hub serializes connection lifecycle and inbound events into a single
// goroutine, then delegates game semantics to a Handler. It knows nothing
// about the game itself.

package realtime

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Handler receives hub events. HandleEvent and HandleDisconnect run on the
// hub goroutine; they must not block on the hub's own channels.
type Handler interface {
	HandleEvent(c *Client, e Event)
	HandleDisconnect(c *Client)
}

type inboundEvent struct {
	client *Client
	event  Event
}

// Hub owns the set of live connections.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent

	handler Handler
	log     zerolog.Logger

	clients map[*Client]bool
}

func NewHub(handler Handler, logger zerolog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		handler:    handler,
		log:        logger,
		clients:    make(map[*Client]bool),
	}
}

// Run processes hub events until ctx is cancelled. clients is touched only
// here; no lock needed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug().Str("conn", c.ID).Int("clients", len(h.clients)).Msg("client connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.handler.HandleDisconnect(c)
				h.log.Debug().Str("conn", c.ID).Int("clients", len(h.clients)).Msg("client disconnected")
			}
		case in := <-h.inbound:
			h.handler.HandleEvent(in.client, in.event)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front of the mux.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request and starts the connection's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan Event, sendBuffer),
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}
