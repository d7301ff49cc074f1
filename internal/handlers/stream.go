package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// streamClient is one subscribed websocket connection. The mutex serializes
// writes since broadcasts and pings come from different goroutines.
type streamClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamClient) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// StreamHandler broadcasts pipeline reports to websocket subscribers at
// /ws/events. Slow or dead clients are dropped rather than blocking the
// pipeline.
type StreamHandler struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*streamClient]bool
}

// NewStreamHandler creates a stream handler with no subscribers
func NewStreamHandler() *StreamHandler {
	return &StreamHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*streamClient]bool),
	}
}

// SetupRoutes configures WebSocket routes
func (h *StreamHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and keeps it subscribed until the
// client disconnects.
func (h *StreamHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &streamClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("Event stream client connected (%d total)", count)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go h.pingLoop(client)

	// Drain inbound frames to process pongs and detect disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(client)
}

func (h *StreamHandler) pingLoop(client *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.RLock()
		_, alive := h.clients[client]
		h.mu.RUnlock()
		if !alive {
			return
		}
		if err := client.write(websocket.PingMessage, nil); err != nil {
			h.remove(client)
			return
		}
	}
}

func (h *StreamHandler) remove(client *streamClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.conn.Close()
		log.Printf("Event stream client disconnected (%d total)", len(h.clients))
	}
	h.mu.Unlock()
}

// Broadcast sends a JSON event to every subscriber
func (h *StreamHandler) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(map[string]interface{}{
		"event":   event,
		"payload": payload,
		"at":      time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Failed to encode stream event: %v", err)
		return
	}

	h.mu.RLock()
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(websocket.TextMessage, data); err != nil {
			h.remove(c)
		}
	}
}

// ClientCount returns the current number of subscribers
func (h *StreamHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
