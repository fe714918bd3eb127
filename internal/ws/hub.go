package ws

import (
	"sync"

	"number_baseball/internal/domain"
	"number_baseball/internal/logger"
	"number_baseball/internal/metrics"
)

// Hub tracks live connections by id and delivers outbound events to them.
// It is the liveness source for matchmaking.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
	metrics.ConnectionsActive.Inc()
}

// Unregister forgets c and closes its send queue, which makes the write pump
// send a close frame and exit. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.ID]; !ok || cur != c {
		return
	}
	delete(h.clients, c.ID)
	close(c.Send)
	metrics.ConnectionsActive.Dec()
}

func (h *Hub) IsLive(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connID]
	return ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify queues n for its recipient. Events for unknown connections and for
// connections whose queue is full are dropped.
func (h *Hub) Notify(n domain.Notice) {
	data, err := encode(n)
	if err != nil {
		logger.Error("encode event failed", "type", n.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[n.To]
	if !ok {
		logger.Debug("event for unknown connection dropped", "conn", n.To, "type", n.Type)
		return
	}
	select {
	case c.Send <- data:
	default:
		logger.Warn("send queue full, event dropped", "conn", n.To, "type", n.Type)
	}
}
