package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jonashappcreative/hotelgame/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	readLimit  = 512
)

// RoomLoader renders a room from one viewer's seat.
type RoomLoader interface {
	Room(ctx context.Context, userID, code string) (game.RoomView, error)
}

// Message is the only frame the server sends.
type Message struct {
	Type    string         `json:"type"`
	Version int64          `json:"version"`
	Room    *game.RoomView `json:"room,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Hub keeps live connections per room and pushes a fresh per-viewer
// snapshot whenever a room changes.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	loader   RoomLoader
	log      *slog.Logger
	upgrader websocket.Upgrader
}

type client struct {
	conn   *websocket.Conn
	userID string
	code   string
	notify chan int64
}

func NewHub(loader RoomLoader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		loader: loader,
		log:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Publish implements game.Publisher. It never blocks: a client that is
// behind only keeps the newest version.
func (h *Hub) Publish(code string, version int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[code] {
		select {
		case c.notify <- version:
		default:
			select {
			case <-c.notify:
			default:
			}
			select {
			case c.notify <- version:
			default:
			}
		}
	}
}

// Subscribers reports how many connections watch a room.
func (h *Hub) Subscribers(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// Serve upgrades the request and streams snapshots of the room until the
// peer goes away. The caller has already authenticated userID.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID, code string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "room", code, "error", err)
		return
	}
	c := &client{conn: conn, userID: userID, code: code, notify: make(chan int64, 1)}
	h.register(c)
	h.log.Info("websocket connected", "room", code, "user", userID)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		h.readPump(c)
	}()
	h.writePump(ctx, c)

	h.unregister(c)
	_ = conn.Close()
	h.log.Info("websocket closed", "room", code, "user", userID)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[c.code]; !ok {
		h.rooms[c.code] = make(map[*client]struct{})
	}
	h.rooms[c.code][c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[c.code], c)
	if len(h.rooms[c.code]) == 0 {
		delete(h.rooms, c.code)
	}
}

// readPump drains the socket so control frames are processed. Clients
// send actions over HTTP, so any payload is ignored.
func (h *Hub) readPump(c *client) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sent, err := h.sendSnapshot(ctx, c)
	if err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.notify:
			if v <= sent {
				continue
			}
			got, err := h.sendSnapshot(ctx, c)
			if err != nil {
				return
			}
			sent = max(got, v)
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) sendSnapshot(ctx context.Context, c *client) (int64, error) {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg := Message{Type: "room"}
	view, err := h.loader.Room(loadCtx, c.userID, c.code)
	if err != nil {
		msg.Type = "error"
		msg.Error = err.Error()
	} else {
		msg.Version = view.Version
		msg.Room = &view
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		h.log.Debug("websocket write failed", "room", c.code, "user", c.userID, "error", err)
		return 0, err
	}
	return msg.Version, nil
}
