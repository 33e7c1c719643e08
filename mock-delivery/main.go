// Local-dev stand-in for the external delivery service. It honors the
// collaborator contract the dispatcher talks to:
//
//	GET  /ws/{workspaceId}?channels=a,b   subscribe a WebSocket client
//	POST /ws/{workspaceId}/broadcast      {channel, message} -> {sent}
//
// Run it and point WS_URL at it to watch broadcasts land.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

type client struct {
	id          string
	workspaceID string
	channels    map[string]struct{} // empty means all channels
	conn        *websocket.Conn
	send        chan []byte
}

func (c *client) subscribed(channel string) bool {
	if len(c.channels) == 0 {
		return true
	}
	_, ok := c.channels[channel]
	return ok
}

type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("client %s connected (workspace=%s, total=%d)", c.id, c.workspaceID, total)
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast fans one message out to the workspace's subscribers of the
// channel and returns how many clients it reached.
func (h *hub) broadcast(workspaceID, channel string, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for c := range h.clients {
		if c.workspaceID != workspaceID || !c.subscribed(channel) {
			continue
		}
		select {
		case c.send <- payload:
			sent++
		default:
			// Client buffer full — skip it
		}
	}
	return sent
}

func (h *hub) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceId")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	channels := map[string]struct{}{}
	if raw := r.URL.Query().Get("channels"); raw != "" {
		for _, ch := range strings.Split(raw, ",") {
			channels[strings.TrimSpace(ch)] = struct{}{}
		}
	}

	c := &client{
		id:          uuid.NewString(),
		workspaceID: workspaceID,
		channels:    channels,
		conn:        conn,
		send:        make(chan []byte, 256),
	}
	h.add(c)

	go c.writePump()
	go c.readPump(h)
}

func (c *client) readPump(h *hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type broadcastRequest struct {
	Channel string          `json:"channel"`
	Message json.RawMessage `json:"message"`
}

func (h *hub) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	workspaceID := r.PathValue("workspaceId")

	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"channel": req.Channel,
		"message": req.Message,
	})

	sent := h.broadcast(workspaceID, req.Channel, payload)
	log.Printf("broadcast workspace=%s channel=%s sent=%d", workspaceID, req.Channel, sent)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"sent": sent})
}

func main() {
	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	h := newHub()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{workspaceId}", h.handleSubscribe)
	mux.HandleFunc("POST /ws/{workspaceId}/broadcast", h.handleBroadcast)

	log.Printf("Mock delivery service starting on :%s", port)
	log.Printf("  GET  /ws/{workspaceId}?channels=a,b  -> subscribe")
	log.Printf("  POST /ws/{workspaceId}/broadcast     -> fan out, returns {sent}")

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal(err)
	}
}
