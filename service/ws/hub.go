package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Message is the frame pushed to connected clients.
type Message struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data,omitempty"`
	Sent time.Time         `json:"sent"`
}

type ClientConnection struct {
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
	UserID uint
}

// Hub tracks live connections per user.
type Hub struct {
	mu          sync.RWMutex
	connections map[uint]map[*ClientConnection]bool
	register    chan *ClientConnection
	unregister  chan *ClientConnection
	done        chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[uint]map[*ClientConnection]bool),
		register:    make(chan *ClientConnection),
		unregister:  make(chan *ClientConnection),
		done:        make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.connections[client.UserID] == nil {
				h.connections[client.UserID] = make(map[*ClientConnection]bool)
			}
			h.connections[client.UserID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, conns := range h.connections {
				for client := range conns {
					h.remove(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() { close(h.done) }

// Register hands a new connection to the hub. It reports false once the hub
// has stopped.
func (h *Hub) Register(client *ClientConnection) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *ClientConnection) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *ClientConnection) {
	conns, ok := h.connections[client.UserID]
	if !ok || !conns[client] {
		return
	}
	delete(conns, client)
	close(client.Send)
	if len(conns) == 0 {
		delete(h.connections, client.UserID)
	}
}

func (h *Hub) Connected(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// SendToUser queues msg on every connection the user has open. Slow
// connections are dropped rather than blocking the sender.
func (h *Hub) SendToUser(userID uint, msg Message) error {
	if msg.Sent.IsZero() {
		msg.Sent = time.Now()
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.connections[userID] {
		select {
		case client.Send <- payload:
		default:
			h.remove(client)
		}
	}
	return nil
}

// ReadPump only keeps the connection alive; clients never send events.
func (c *ClientConnection) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket error for user %d: %v", c.UserID, err)
			}
			return
		}
	}
}

func (c *ClientConnection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
