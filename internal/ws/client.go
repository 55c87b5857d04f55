package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// transport is the write side of a *websocket.Conn.
type transport interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Conn is one live websocket registered in a Hub.
type Conn struct {
	id        string
	userID    int64
	raw       transport
	writeWait time.Duration

	mu        sync.Mutex // serializes data frames
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(raw transport, userID int64, writeWait time.Duration) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		userID:    userID,
		raw:       raw,
		writeWait: writeWait,
		done:      make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(mt, data)
}

func (c *Conn) writeLocked(mt int, data []byte) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.raw.WriteMessage(mt, data)
}

// registerAndGreet runs join while holding the write lock and then sends the
// greeting, so the greeting is the first frame the peer gets once the conn is
// reachable through a hub.
func (c *Conn) registerAndGreet(join func() bool, greeting any) (bool, error) {
	data, err := json.Marshal(greeting)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !join() {
		return false, nil
	}
	return true, c.writeLocked(websocket.TextMessage, data)
}

func (c *Conn) ping() error {
	return c.raw.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// close is idempotent. A non-zero code is sent as a close frame first.
func (c *Conn) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if code != 0 {
			msg := websocket.FormatCloseMessage(code, reason)
			_ = c.raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		_ = c.raw.Close()
	})
}

func (c *Conn) closed() <-chan struct{} { return c.done }
