// Package realtime pushes change events to websocket clients.  Clients
// are grouped by tenant and may narrow the feed to a set of topics.
package realtime

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-orders/internal/events"
	"github.com/iliyamo/restaurant-orders/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Logger is the subset of the gommon logger the hub writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type client struct {
	conn     *websocket.Conn
	tenantID uint64
	topics   map[string]bool // empty means every topic
	send     chan events.Event
}

func (c *client) wants(topic string) bool {
	return len(c.topics) == 0 || c.topics[topic]
}

// Hub tracks connected clients per tenant.
type Hub struct {
	mu      sync.Mutex
	clients map[uint64]map[*client]struct{}
	log     Logger

	upgrader websocket.Upgrader
}

func NewHub(log Logger) *Hub {
	if log == nil {
		log = glog.New("realtime")
	}
	return &Hub{
		clients: make(map[uint64]map[*client]struct{}),
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ParseTopics splits a comma separated topic list and rejects unknown
// names.  An empty list subscribes to everything.
func ParseTopics(raw string) ([]string, error) {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if !model.Entity(t).Valid() {
			return nil, fmt.Errorf("unknown topic %q", t)
		}
		out = append(out, t)
	}
	return out, nil
}

// Handle is subscribed to the bus.  It never blocks: a client whose
// buffer is full is disconnected and is expected to reconnect and
// refetch.
func (h *Hub) Handle(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[e.TenantID] {
		if !c.wants(e.Topic) {
			continue
		}
		select {
		case c.send <- e:
		default:
			h.log.Warnf("realtime: tenant %d client too slow, disconnecting", e.TenantID)
			h.removeLocked(c)
		}
	}
}

// Count returns the number of connected clients of tenantID.
func (h *Hub) Count(tenantID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[tenantID])
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.tenantID] == nil {
		h.clients[c.tenantID] = make(map[*client]struct{})
	}
	h.clients[c.tenantID][c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	room := h.clients[c.tenantID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.clients, c.tenantID)
	}
	close(c.send)
}

// Serve upgrades the request and streams the tenant's events until the
// client goes away.  The caller has already authenticated the request.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, tenantID uint64, topics []string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{conn: conn, tenantID: tenantID, topics: map[string]bool{}, send: make(chan events.Event, sendBuffer)}
	for _, t := range topics {
		c.topics[t] = true
	}
	h.add(c)
	go h.writePump(c)
	h.readPump(c)
	return nil
}

// readPump drains client frames so control messages are processed; the
// feed is one-way.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
				h.log.Warnf("realtime: ws write error: %v", err)
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
