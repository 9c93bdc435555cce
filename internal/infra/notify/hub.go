package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xavierca1/leadboard/internal/board"
)

const (
	sendBuffer = 16
	writeWait  = 10 * time.Second
)

type WSMessage struct {
	Action string `json:"action"`
	Board  string `json:"board"`
	Data   any    `json:"data"`
}

type client struct {
	id       string
	pipeline string
	conn     *websocket.Conn
	send     chan []byte
}

// Hub pushes board notifications to websocket clients. A client that passes
// ?pipeline=<id> only receives that board's messages.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		logger:   logger,
		clients:  make(map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (h *Hub) Notify(_ context.Context, n board.Notification) {
	h.broadcast(n.PipelineID, WSMessage{Action: "notification", Board: n.PipelineID, Data: n})
}

func (h *Hub) broadcast(pipelineID string, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("encode ws message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.pipeline != "" && c.pipeline != pipelineID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// slow reader
			h.removeLocked(c)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:       uuid.NewString(),
		pipeline: r.URL.Query().Get("pipeline"),
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("ws client connected", zap.String("client", c.id), zap.String("pipeline", c.pipeline))

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards client frames and returns once the connection drops.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.mu.Lock()
		h.removeLocked(c)
		h.mu.Unlock()
		h.logger.Debug("ws client disconnected", zap.String("client", c.id))
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
