package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/metrics"
	"github.com/Kerhoff/toyrent/internal/store"
)

const (
	sendBufferSize = 16
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	writeWait      = 10 * time.Second
)

// Message is pushed to WebSocket subscribers
type Message struct {
	Type      string       `json:"type"` // "state" or "navigate"
	Timestamp int64        `json:"timestamp"`
	State     *store.State `json:"state,omitempty"`
	Path      string       `json:"path,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans store snapshots and navigation requests out to WebSocket clients
type Hub struct {
	store   *store.Store
	logger  *logrus.Entry
	metrics *metrics.Metrics

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader

	unsubscribe func()
	closeOnce   sync.Once
}

// NewHub creates a hub subscribed to st
func NewHub(st *store.Store, logger *logrus.Logger, m *metrics.Metrics) *Hub {
	h := &Hub{
		store:      st,
		logger:     logger.WithField("component", "ws"),
		metrics:    m,
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     localOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	h.unsubscribe = st.Subscribe(func(s store.State) {
		h.publish(Message{Type: "state", State: &s})
	})

	go h.run()
	return h
}

// localOrigin accepts same-origin and localhost pages only
func localOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return strings.HasPrefix(origin, "http://localhost") ||
		strings.HasPrefix(origin, "https://localhost") ||
		strings.HasPrefix(origin, "http://127.0.0.1") ||
		strings.HasPrefix(origin, "https://127.0.0.1")
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			h.metrics.SetWSClients(0)
			return

		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mutex.Unlock()

			st := h.store.State()
			if raw, err := h.encode(Message{Type: "state", State: &st}); err == nil {
				c.send <- raw
			}
			h.metrics.SetWSClients(n)
			h.logger.WithField("clients", n).Debug("Client connected")

		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mutex.Unlock()
			h.metrics.SetWSClients(n)
			h.logger.WithField("clients", n).Debug("Client disconnected")

		case raw := <-h.broadcast:
			h.sendToAll(raw)
		}
	}
}

// sendToAll drops clients whose buffer is full
func (h *Hub) sendToAll(raw []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		select {
		case c.send <- raw:
		default:
			h.logger.Warn("Dropping slow client")
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.metrics.SetWSClients(len(h.clients))
}

func (h *Hub) encode(msg Message) ([]byte, error) {
	msg.Timestamp = time.Now().Unix()
	raw, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal message")
	}
	return raw, err
}

func (h *Hub) publish(msg Message) {
	raw, err := h.encode(msg)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- raw:
	case <-h.done:
	default:
		h.logger.WithField("type", msg.Type).Warn("Broadcast queue full, message dropped")
	}
}

// Navigate asks every connected page to navigate to path. It is used as the
// store's navigator.
func (h *Hub) Navigate(path string) {
	h.logger.WithField("path", path).Info("Navigation requested")
	h.publish(Message{Type: "navigate", Path: path})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and streams messages to it
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade connection")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writeMessages(c)
	go h.readMessages(c)
}

// readMessages only handles keepalive; clients never send commands here
func (h *Hub) readMessages(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.WithError(err).Warn("WebSocket error")
			}
			return
		}
	}
}

func (h *Hub) writeMessages(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
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

// Close disconnects every client and stops the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.unsubscribe()
		close(h.done)
	})
}
