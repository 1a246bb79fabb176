package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	MessageTypeState = "state"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 16
)

// Message is the websocket envelope pushed to dashboard clients.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Hub keeps the set of connected clients and fans out broadcasts to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	count int

	// Every message is a full state frame, so only the newest one per type is kept.
	pendingMu sync.Mutex
	pending   map[string][]byte
	wake      chan struct{}

	// initial returns the payload sent to a client right after it connects.
	initial  func() any
	upgrader websocket.Upgrader
}

// Client is a single websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

func NewHub(initial func() any, checkOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		pending:    make(map[string][]byte),
		wake:       make(chan struct{}, 1),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		initial:    initial,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Run serves register, unregister and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.setCount(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			h.setCount(len(h.clients))
			logrus.WithField("clientId", c.id).Info("websocket client connected")
			if h.initial != nil {
				if data, err := encode(MessageTypeState, h.initial()); err == nil {
					h.deliver(c, data)
				}
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount(len(h.clients))
				logrus.WithField("clientId", c.id).Info("websocket client disconnected")
			}

		case <-h.wake:
			for _, msg := range h.takePending() {
				for c := range h.clients {
					h.deliver(c, msg)
				}
			}
		}
	}
}

// deliver drops clients whose buffer is full.
func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		delete(h.clients, c)
		close(c.send)
		h.setCount(len(h.clients))
		logrus.WithField("clientId", c.id).Warn("websocket client too slow, dropped")
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast queues a message for every client. It never blocks; a queued message
// of the same type not yet sent is replaced.
func (h *Hub) Broadcast(msgType string, data any) {
	msg, err := encode(msgType, data)
	if err != nil {
		logrus.Errorf("encode broadcast: %v", err)
		return
	}
	h.pendingMu.Lock()
	h.pending[msgType] = msg
	h.pendingMu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hub) takePending() [][]byte {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	msgs := make([][]byte, 0, len(h.pending))
	for t, msg := range h.pending {
		msgs = append(msgs, msg)
		delete(h.pending, t)
	}
	return msgs
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Data: data, Timestamp: time.Now().UnixMilli()})
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), id: uuid.NewString()}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only handles control frames; the dashboard never sends data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.WithField("clientId", c.id).Debugf("websocket read: %v", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
