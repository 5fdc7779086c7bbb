// Package broadcast fans rendered result views out to live websocket
// subscribers, one subscriber group per poll.
package broadcast

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pollwatch/pollwatch/internal/domain"
	"github.com/pollwatch/pollwatch/internal/metrics"
)

const writeDeadline = 5 * time.Second

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(view domain.RenderedView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteJSON(view)
}

// Hub tracks live feed subscribers per poll. Subscribers that fail a write
// are dropped; the durable record is the source of truth, the feed is a
// convenience.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*client]bool)}
}

// Subscribe registers a connection for a poll's views and returns the
// unsubscribe function.
func (h *Hub) Subscribe(pollID string, conn *websocket.Conn) func() {
	c := &client{conn: conn}

	h.mu.Lock()
	if h.subscribers[pollID] == nil {
		h.subscribers[pollID] = make(map[*client]bool)
	}
	h.subscribers[pollID][c] = true
	h.mu.Unlock()
	metrics.LiveFeedClients.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.drop(pollID, c)
			metrics.LiveFeedClients.Dec()
		})
	}
}

// PublishView delivers a rendered view to every subscriber of the poll.
func (h *Hub) PublishView(pollID string, view domain.RenderedView) {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.subscribers[pollID]))
	for c := range h.subscribers[pollID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.write(view); err != nil {
			h.drop(pollID, c)
			_ = c.conn.Close()
		}
	}
}

func (h *Hub) drop(pollID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[pollID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.subscribers, pollID)
		}
	}
}
