package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/adaptive.audio/internal/ale/engine"
	"github.com/banshee-data/adaptive.audio/internal/monitoring"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local monitoring tool; accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsMessage is the envelope every frame on /ws/state uses.
type wsMessage struct {
	Type  string    `json:"type"`
	State stateJSON `json:"state"`
}

// Client is a single WebSocket subscriber.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published engine states out to WebSocket clients.
type Hub struct {
	mu         sync.Mutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// done is closed when Run returns; pump goroutines select on it so
	// register/unregister never block past shutdown.
	done chan struct{}
}

// NewHub creates an empty hub. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			close(h.done)
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			monitoring.Debugf("monitor: ws client connected (%d total)", n)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client; drop it rather than stall the hub.
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop removes a client, tolerating a hub that has already shut down.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// BroadcastState encodes a snapshot and queues it for all clients. Frames
// are dropped when the hub is saturated; the next tick supersedes them.
func (h *Hub) BroadcastState(st *engine.State) {
	h.mu.Lock()
	empty := len(h.clients) == 0
	h.mu.Unlock()
	if empty {
		return
	}
	data, err := json.Marshal(wsMessage{Type: "state", State: toStateJSON(st)})
	if err != nil {
		monitoring.Debugf("monitor: ws marshal: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// handleStateWS upgrades the connection and registers it with the hub. The
// client immediately receives the latest snapshot, then one frame per
// published tick.
func (ws *WebServer) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		monitoring.Logf("monitor: ws upgrade: %v", err)
		return
	}

	client := &Client{hub: ws.hub, conn: conn, send: make(chan []byte, 16)}
	select {
	case ws.hub.register <- client:
	case <-ws.hub.done:
		conn.Close()
		return
	}

	ws.stateMu.Lock()
	latest := ws.latest
	ws.stateMu.Unlock()
	if latest != nil {
		if data, err := json.Marshal(wsMessage{Type: "state_init", State: toStateJSON(latest)}); err == nil {
			select {
			case client.send <- data:
			default:
			}
		}
	}

	// Pumps outlive r.Context(); the hub closes them on shutdown.
	go client.writePump()
	go client.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the socket is publish-only. It exists to
// process pongs and to notice the peer going away.
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
