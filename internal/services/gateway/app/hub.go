package app

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16 // messaggi in coda per client prima di scartarlo
)

// Envelope is the websocket frame: Type is "snapshot" or "pump".
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans live updates out to the connected dashboards. Every client has its
// own queue and writer goroutine, so Broadcast never waits on a socket.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	log     *logrus.Entry
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{clients: make(map[*wsClient]struct{}), log: log}
}

// ServeWS upgrades the request and keeps the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.WithField("clients", n).Debug("websocket client connected")

	go h.writeLoop(c)
	defer h.remove(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) writeLoop(c *wsClient) {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.WithError(err).Debug("websocket write failed")
			_ = c.conn.Close()
			return
		}
	}
}

// dropLocked unregisters c and stops its writer. h.mu must be held.
func (h *Hub) dropLocked(c *wsClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Len is the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues v for every client; a client whose queue is full is disconnected.
func (h *Hub) Broadcast(typ string, v any) {
	msg, err := json.Marshal(Envelope{Type: typ, Data: v})
	if err != nil {
		h.log.WithError(err).Error("websocket encode failed")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("websocket client too slow, disconnected")
			h.dropLocked(c)
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) OnSnapshot(snap messages.Snapshot) {
	h.Broadcast("snapshot", snap.Data)
}

func (h *Hub) OnPumpState(evt messages.PumpStateEvent) {
	h.Broadcast("pump", evt)
}
