package ws

import (
	"sync"

	"github.com/samber/lo"
)

// entry is the set of connections registered under one key.
type entry struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

func newEntry() *entry { return &entry{conns: map[*Conn]struct{}{}} }

func (e *entry) add(c *Conn) {
	e.mu.Lock()
	e.conns[c] = struct{}{}
	e.mu.Unlock()
}

// remove reports whether c was present.
func (e *entry) remove(c *Conn) bool {
	e.mu.Lock()
	_, ok := e.conns[c]
	delete(e.conns, c)
	e.mu.Unlock()
	return ok
}

func (e *entry) snapshot() []*Conn {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return lo.Keys(e.conns)
}

func (e *entry) size() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.conns)
}

func (e *entry) drain() []*Conn {
	e.mu.Lock()
	defer e.mu.Unlock()
	conns := lo.Keys(e.conns)
	e.conns = map[*Conn]struct{}{}
	return conns
}
