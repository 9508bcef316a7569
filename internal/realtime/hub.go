package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quickbite/internal/auth"
	"quickbite/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the app origin; token auth is the gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type outboundMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type inboundMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// Hub is the room-scoped fan-out registry. Emit never blocks: a client whose
// send buffer is full simply misses the event.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool
	log   *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]bool),
		log:   log,
	}
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	claims *auth.Claims

	mu    sync.Mutex
	rooms map[string]bool
}

// Emit fans a payload out to every connection in the room. Failures are
// invisible to the caller; realtime delivery is best-effort by contract.
func (h *Hub) Emit(room, event string, payload interface{}) {
	raw, err := json.Marshal(outboundMessage{Event: event, Data: payload})
	if err != nil {
		h.log.Warn("REALTIME", fmt.Sprintf("Marshal for room %s failed: %v", room, err))
		return
	}

	h.mu.RLock()
	members := h.rooms[room]
	conns := make([]*client, 0, len(members))
	for c := range members {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		// send is never closed; a client that left between the snapshot and
		// here has its done channel closed and just misses the event.
		select {
		case <-c.done:
		case c.send <- raw:
		default:
			// Slow consumer, drop the event rather than the hub's throughput.
		}
	}
}

// RoomSize reports the current member count, used by tests and health output.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(c *client, room string) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]bool)
	}
	h.rooms[room][c] = true
	h.mu.Unlock()

	c.mu.Lock()
	c.rooms[room] = true
	c.mu.Unlock()
}

func (h *Hub) leave(c *client, room string) {
	h.mu.Lock()
	if members := h.rooms[room]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

func (h *Hub) disconnect(c *client) {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	c.mu.Unlock()

	for _, room := range rooms {
		h.leave(c, room)
	}
	close(c.done)
}

// Handler upgrades GET /ws?token=... connections. The caller lands in their
// own user room and, for staff, their restaurant's room; order and group
// rooms are joined explicitly by the client.
type Handler struct {
	Hub    *Hub
	Tokens *auth.TokenManager
	Logger *logger.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}
	claims, err := h.Tokens.VerifyAccessToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("REALTIME", fmt.Sprintf("Upgrade failed: %v", err))
		return
	}

	c := &client{
		hub:    h.Hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		claims: claims,
		rooms:  make(map[string]bool),
	}

	h.Hub.join(c, UserRoom(claims.UserID))
	if claims.RestaurantID != "" {
		h.Hub.join(c, RestaurantRoom(claims.RestaurantID))
	}

	h.Logger.Debug("REALTIME", fmt.Sprintf("User %s connected", claims.UserID))

	go c.writePump()
	go c.readPump()
}

// joinable restricts client-initiated joins to tracking rooms; user and
// restaurant rooms are assigned by the server only.
func joinable(room string) bool {
	return strings.HasPrefix(room, "order_") || strings.HasPrefix(room, "group_")
}

func (c *client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		switch msg.Action {
		case "join":
			if joinable(msg.Room) {
				c.hub.join(c, msg.Room)
			}
		case "leave":
			if joinable(msg.Room) {
				c.hub.leave(c, msg.Room)
			}
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case raw := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
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
