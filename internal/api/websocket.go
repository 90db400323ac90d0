package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huemotion/internal/eventbus"
)

const (
	wsSendBufferSize = 64
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 60 * time.Second
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 4096
)

// WSMessage is what clients receive for each engine event.
type WSMessage struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Hub fans engine events out to connected websocket clients.
type Hub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
}

type wsClient struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	types map[eventbus.EventType]bool // empty = everything
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Subscribe forwards every engine event type from the bus to the hub.
func (h *Hub) Subscribe(bus *eventbus.Bus) {
	bus.SubscribeAll(h.Broadcast, eventbus.AllEventTypes...)
}

// Broadcast sends an event to every interested client. Slow clients drop messages.
func (h *Hub) Broadcast(event eventbus.Event) {
	data, err := json.Marshal(WSMessage{
		Type:      string(event.Type),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      event.Data,
	})
	if err != nil {
		log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to marshal websocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if len(c.types) > 0 && !c.types[event.Type] {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Debug().Msg("Websocket client too slow, dropping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection. The optional ?types=frame,animation_started
// query limits which events are sent.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, wsSendBufferSize),
		types: make(map[eventbus.EventType]bool),
	}
	if q := r.URL.Query().Get("types"); q != "" {
		for _, t := range strings.Split(q, ",") {
			c.types[eventbus.EventType(strings.TrimSpace(t))] = true
		}
	}

	h.register(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	log.Debug().Int("clients", n).Msg("Websocket client connected")
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(c.send)
		log.Debug().Int("clients", n).Msg("Websocket client disconnected")
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// readPump only watches for close and keeps the read deadline fresh.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Websocket read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
