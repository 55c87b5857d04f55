package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Hub keeps connection sets per key (room id or user id). Each key has its
// own lock; no I/O happens while one is held.
type Hub struct {
	name    string
	entries sync.Map // int64 -> *entry
	closed  atomic.Bool
}

func NewHub(name string) *Hub { return &Hub{name: name} }

// Join registers c under key. It returns false, and closes c, when the hub
// has already been shut down.
func (h *Hub) Join(key int64, c *Conn) bool {
	if h.closed.Load() {
		c.close(websocket.CloseGoingAway, "server shutdown")
		return false
	}
	e, _ := h.entries.LoadOrStore(key, newEntry())
	e.(*entry).add(c)

	// Close may have drained the entry between the check and the add.
	if h.closed.Load() {
		h.drop(key, c, websocket.CloseGoingAway, "server shutdown")
		return false
	}
	zap.L().Debug("ws.join", zap.String("hub", h.name), zap.Int64("key", key), zap.String("conn_id", c.id))
	return true
}

// Leave deregisters c from key and closes it. It reports whether the pair
// was registered; an unregistered pair is left untouched.
func (h *Hub) Leave(key int64, c *Conn) bool {
	if !h.remove(key, c) {
		return false
	}
	c.close(0, "")
	return true
}

// LeaveUser deregisters every connection of userID under key and closes
// them with a policy-violation frame. It returns how many were dropped.
func (h *Hub) LeaveUser(key, userID int64) int {
	v, ok := h.entries.Load(key)
	if !ok {
		return 0
	}
	n := 0
	for _, c := range v.(*entry).snapshot() {
		if c.userID != userID || !h.remove(key, c) {
			continue
		}
		c.close(websocket.ClosePolicyViolation, "membership revoked")
		n++
	}
	if n > 0 {
		zap.L().Info("ws.leave_user", zap.String("hub", h.name), zap.Int64("key", key),
			zap.Int64("user_id", userID), zap.Int("conns", n))
	}
	return n
}

// drop ends a session the hub owns: c is removed if present and always closed.
func (h *Hub) drop(key int64, c *Conn, code int, reason string) {
	h.remove(key, c)
	c.close(code, reason)
}

func (h *Hub) remove(key int64, c *Conn) bool {
	v, ok := h.entries.Load(key)
	if !ok || !v.(*entry).remove(c) {
		return false
	}
	zap.L().Debug("ws.leave", zap.String("hub", h.name), zap.Int64("key", key), zap.String("conn_id", c.id))
	return true
}

// Broadcast marshals payload once and writes it to every connection under
// key, concurrently. It returns after each write finished or hit its write
// deadline; connections that failed are removed. It returns the number of
// successful deliveries.
func (h *Hub) Broadcast(key int64, payload any) int {
	v, ok := h.entries.Load(key)
	if !ok {
		return 0
	}
	conns := v.(*entry).snapshot()
	if len(conns) == 0 {
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Error("ws.marshal", zap.String("hub", h.name), zap.Error(err))
		return 0
	}

	failed := make([]error, len(conns))
	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			failed[i] = c.write(websocket.TextMessage, data)
		}()
	}
	wg.Wait()

	delivered := 0
	for i, c := range conns {
		if failed[i] == nil {
			delivered++
			continue
		}
		zap.L().Info("ws.write_failed",
			zap.String("hub", h.name),
			zap.Int64("key", key),
			zap.String("conn_id", c.id),
			zap.Error(failed[i]),
		)
		h.drop(key, c, 0, "")
	}
	return delivered
}

// Count returns how many connections are registered under key.
func (h *Hub) Count(key int64) int {
	if v, ok := h.entries.Load(key); ok {
		return v.(*entry).size()
	}
	return 0
}

// Close closes every registered connection and clears all keys. Later Joins
// are refused.
func (h *Hub) Close() {
	h.closed.Store(true)

	n := 0
	h.entries.Range(func(k, v any) bool {
		for _, c := range v.(*entry).drain() {
			c.close(websocket.CloseGoingAway, "server shutdown")
			n++
		}
		h.entries.Delete(k)
		return true
	})
	zap.L().Info("ws.hub_closed", zap.String("hub", h.name), zap.Int("conns", n))
}
