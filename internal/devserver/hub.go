package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/telnet2/h5runner/internal/metrics"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The dev server is reachable from any local origin.
	},
}

// Message is what live-reload clients receive.
type Message struct {
	Type   string   `json:"type"`
	Hash   string   `json:"hash,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// Live-reload message types.
const (
	MessageHello   = "hello"
	MessageInvalid = "invalid"
	MessageReload  = "reload"
	MessageErrors  = "errors"
)

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// hub tracks connected live-reload clients.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    *Message
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("live-reload upgrade failed")
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	last := h.last
	h.mu.Unlock()
	metrics.ReloadClients.Inc()

	defer func() {
		h.remove(c)
		conn.Close()
	}()

	if err := c.send(Message{Type: MessageHello}); err != nil {
		return
	}
	if last != nil && last.Type == MessageErrors {
		if err := c.send(*last); err != nil {
			return
		}
	}

	// Clients never send; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.ReloadClients.Dec()
	}
}

func (h *hub) broadcast(msg Message) {
	h.mu.Lock()
	h.last = &msg
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	metrics.ReloadBroadcasts.Inc()
	for _, c := range clients {
		if err := c.send(msg); err != nil {
			log.Debug().Err(err).Msg("dropping live-reload client")
			h.remove(c)
			c.conn.Close()
		}
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closed"),
			time.Now().Add(writeWait))
		c.mu.Unlock()
		c.conn.Close()
		metrics.ReloadClients.Dec()
	}
}
