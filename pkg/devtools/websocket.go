package devtools

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/vstore/pkg/store"
)

const writeWait = 10 * time.Second

// hub tracks websocket clients streaming store snapshots.
type hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// client is one websocket connection. Snapshots are coalesced: a slow
// client only receives the latest one.
type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	latest *store.Snapshot
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (c *client) push(snap *store.Snapshot) {
	c.mu.Lock()
	if c.latest == nil || snap.Version > c.latest.Version {
		c.latest = snap
	}
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *client) take() *store.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.latest
	c.latest = nil
	return snap
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// serve upgrades the request and streams snapshots of s until the client
// disconnects. The current snapshot is sent first.
func (h *hub) serve(w http.ResponseWriter, r *http.Request, s *store.Store) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	unsubscribe := s.Subscribe(c.push)
	c.push(s.Snapshot())

	go h.writeLoop(c)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	unsubscribe()
	h.remove(c)
}

func (h *hub) writeLoop(c *client) {
	defer h.remove(c)
	var sent uint64
	first := true
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}
		snap := c.take()
		if snap == nil || (!first && snap.Version <= sent) {
			continue
		}
		data, err := json.Marshal(Message{Type: MessageSnapshot, Snapshot: snap})
		if err != nil {
			data, _ = json.Marshal(Message{Type: MessageError, Error: err.Error()})
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		sent, first = snap.Version, false
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// count returns the number of connected clients.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll closes all client connections.
func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
