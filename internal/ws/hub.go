// Package ws pushes store events to connected game clients so the store
// screen updates without polling.
package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Logger defines the minimal logging interface required by the hub.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Event is one store-side notification pushed to a player.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

const (
	EventAttemptResolved     = "attempt_resolved"
	EventEntitlementsChanged = "entitlements_changed"
	EventRewardCredited      = "reward_credited"
)

// StoreHub holds one connection per player. A reconnect replaces the old
// socket; writes are serialized per connection.
type StoreHub struct {
	logger Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[int]*websocket.Conn
	locks map[int]*sync.Mutex
}

func NewStoreHub(logger Logger) *StoreHub {
	return &StoreHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[int]*websocket.Conn),
		locks: make(map[int]*sync.Mutex),
	}
}

// ServeWS upgrades the request and registers the player's connection. The
// player id comes from the verified token via the auth middleware, never
// from the client, so a player can only subscribe to their own events.
func (h *StoreHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID, ok := r.Context().Value("user_id").(int)
	if !ok || playerID == 0 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("store ws upgrade for player %d failed: %v", playerID, err)
		return
	}

	h.mu.Lock()
	if old, ok := h.conns[playerID]; ok {
		_ = old.Close()
	}
	h.conns[playerID] = conn
	if _, ok := h.locks[playerID]; !ok {
		h.locks[playerID] = &sync.Mutex{}
	}
	h.mu.Unlock()

	h.logger.Infof("store ws: player %d connected", playerID)

	go h.pingLoop(playerID, conn)
	go h.readLoop(playerID, conn)
}

// Push sends one event to the player if connected. Offline players are
// skipped; the store state is re-fetched on screen open anyway.
func (h *StoreHub) Push(playerID int, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Errorf("store ws marshal failed: %v", err)
		return
	}
	h.safeWrite(playerID, func(conn *websocket.Conn) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
}

func (h *StoreHub) pingLoop(playerID int, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		h.mu.RLock()
		alive := h.conns[playerID] == conn
		h.mu.RUnlock()
		if !alive {
			return
		}
		h.safeWrite(playerID, func(c *websocket.Conn) error {
			return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})
	}
}

func (h *StoreHub) readLoop(playerID int, conn *websocket.Conn) {
	defer h.closeConn(playerID, conn)

	conn.SetReadLimit(4 << 10)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if mt == websocket.TextMessage && strings.EqualFold(strings.TrimSpace(string(message)), "ping") {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
		}
	}
}

func (h *StoreHub) closeConn(playerID int, conn *websocket.Conn) {
	_ = conn.Close()
	h.mu.Lock()
	if current, ok := h.conns[playerID]; ok && current == conn {
		delete(h.conns, playerID)
		delete(h.locks, playerID)
	}
	h.mu.Unlock()
}

func (h *StoreHub) safeWrite(playerID int, fn func(*websocket.Conn) error) {
	h.mu.RLock()
	conn := h.conns[playerID]
	mu := h.locks[playerID]
	h.mu.RUnlock()
	if conn == nil || mu == nil {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := fn(conn); err != nil {
		h.logger.Errorf("store ws write to player %d failed: %v", playerID, err)
		h.closeConn(playerID, conn)
	}
}
