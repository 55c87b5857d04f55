package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

// fakeTransport records frames instead of putting them on a socket.
type fakeTransport struct {
	mu         sync.Mutex
	frames     [][]byte
	controls   []int
	deadline   time.Time
	closed     bool
	writeErr   error
	stall      bool // block every write until the deadline passes
	closeCalls int
}

func (f *fakeTransport) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	f.deadline = t
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	stall, deadline, werr := f.stall, f.deadline, f.writeErr
	f.mu.Unlock()

	if stall {
		time.Sleep(time.Until(deadline))
		return timeoutErr{}
	}
	if werr != nil {
		return werr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), data...))
	return nil
}

func (f *fakeTransport) WriteControl(mt int, _ []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = append(f.controls, mt)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCalls++
	return nil
}

func (f *fakeTransport) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newFakeConn(userID int64) (*Conn, *fakeTransport) {
	ft := &fakeTransport{}
	return newConn(ft, userID, 50*time.Millisecond), ft
}

func decode(t *testing.T, frame []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(frame, &m))
	return m
}

func TestHub_BroadcastReachesEveryConnUnderKeyOnce(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")

	a, fa := newFakeConn(1)
	b, fb := newFakeConn(2)
	other, fo := newFakeConn(3)
	req.True(h.Join(7, a))
	req.True(h.Join(7, b))
	req.True(h.Join(8, other))

	n := h.Broadcast(7, map[string]any{"event": "rooms/message", "content": "hi"})
	req.Equal(2, n)

	for _, ft := range []*fakeTransport{fa, fb} {
		frames := ft.received()
		req.Len(frames, 1)
		req.Equal("hi", decode(t, frames[0])["content"])
	}
	req.Empty(fo.received())
}

func TestHub_BroadcastUnknownKey(t *testing.T) {
	h := NewHub("room")
	require.Zero(t, h.Broadcast(42, map[string]string{"x": "y"}))
	require.Zero(t, h.Count(42))
}

func TestHub_LeaveStopsDeliveryAndIsIdempotent(t *testing.T) {
	req := require.New(t)
	h := NewHub("direct")

	a, fa := newFakeConn(5)
	b, fb := newFakeConn(5)
	h.Join(5, a)
	h.Join(5, b)
	req.Equal(2, h.Count(5))

	req.True(h.Leave(5, a))
	req.False(h.Leave(5, a))
	req.False(h.Leave(99, a))
	req.Equal(1, h.Count(5))
	req.True(fa.isClosed())

	req.Equal(1, h.Broadcast(5, map[string]string{"event": "direct/message"}))
	req.Empty(fa.received())
	req.Len(fb.received(), 1)
}

func TestHub_LeaveUnregisteredPairIsNoop(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")
	c, ft := newFakeConn(1)

	req.False(h.Leave(3, c))
	req.False(ft.isClosed())
	req.Zero(h.Count(3))
}

func TestHub_LeaveWrongKeyKeepsDelivery(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")
	c, ft := newFakeConn(1)
	other, _ := newFakeConn(2)
	req.True(h.Join(7, c))
	req.True(h.Join(8, other))

	req.False(h.Leave(8, c))
	req.False(ft.isClosed())
	req.Equal(1, h.Count(7))
	req.Equal(1, h.Count(8))

	req.Equal(1, h.Broadcast(7, map[string]string{"content": "still here"}))
	req.Len(ft.received(), 1)
	req.Equal(1, h.Count(7))
}

func TestHub_LeaveUserDropsOnlyThatUser(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")

	a1, fa1 := newFakeConn(1)
	a2, fa2 := newFakeConn(1)
	b, fb := newFakeConn(2)
	elsewhere, fe := newFakeConn(1)
	h.Join(7, a1)
	h.Join(7, a2)
	h.Join(7, b)
	h.Join(8, elsewhere)

	req.Equal(2, h.LeaveUser(7, 1))
	req.Equal(1, h.Count(7))
	for _, ft := range []*fakeTransport{fa1, fa2} {
		req.True(ft.isClosed())
		req.Contains(ft.controls, websocket.CloseMessage)
	}
	req.False(fe.isClosed())
	req.Equal(1, h.Count(8))

	req.Equal(1, h.Broadcast(7, map[string]string{"content": "bye alice"}))
	req.Len(fb.received(), 1)
	req.Zero(h.LeaveUser(7, 1))
	req.Zero(h.LeaveUser(99, 1))
}

// drop is what Join falls back to when it loses against Close; the peer must
// still see the shutdown close frame.
func TestHub_DropSendsCloseFrameForUnregisteredConn(t *testing.T) {
	h := NewHub("room")
	c, ft := newFakeConn(1)

	h.drop(7, c, websocket.CloseGoingAway, "server shutdown")
	require.True(t, ft.isClosed())
	require.Equal(t, []int{websocket.CloseMessage}, ft.controls)
}

func TestHub_BrokenConnDoesNotAffectOthers(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")

	good, fg := newFakeConn(1)
	broken, fbk := newFakeConn(2)
	fbk.writeErr = errors.New("broken pipe")
	h.Join(7, good)
	h.Join(7, broken)

	req.Equal(1, h.Broadcast(7, map[string]string{"content": "one"}))
	req.Equal(1, h.Count(7), "failed conn is deregistered")
	req.True(fbk.isClosed())

	req.Equal(1, h.Broadcast(7, map[string]string{"content": "two"}))
	req.Len(fg.received(), 2)
}

func TestHub_SlowPeerIsBoundedByWriteDeadline(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")

	fast, ff := newFakeConn(1)
	slow, fs := newFakeConn(2)
	fs.stall = true
	h.Join(7, fast)
	h.Join(7, slow)

	start := time.Now()
	n := h.Broadcast(7, map[string]string{"content": "hi"})
	req.Less(time.Since(start), time.Second)
	req.Equal(1, n)
	req.Len(ff.received(), 1)
	req.Equal(1, h.Count(7))
	req.True(fs.isClosed())
}

func TestHub_SequentialBroadcastsKeepOrder(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")

	var fts []*fakeTransport
	for i := int64(1); i <= 3; i++ {
		c, ft := newFakeConn(i)
		h.Join(7, c)
		fts = append(fts, ft)
	}

	const total = 50
	for i := 0; i < total; i++ {
		h.Broadcast(7, map[string]int{"seq": i})
	}

	for _, ft := range fts {
		frames := ft.received()
		req.Len(frames, total)
		for i, f := range frames {
			req.EqualValues(i, decode(t, f)["seq"])
		}
	}
}

func TestHub_ConcurrentJoinLeaveBroadcast(t *testing.T) {
	h := NewHub("room")

	const workers = 32
	stay := make([]*Conn, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			c, _ := newFakeConn(int64(i))
			stay[i] = c
			h.Join(int64(i%4), c)
		}()
		go func() {
			defer wg.Done()
			c, _ := newFakeConn(int64(i))
			h.Join(int64(i%4), c)
			h.Leave(int64(i%4), c)
		}()
		go func() {
			defer wg.Done()
			h.Broadcast(int64(i%4), map[string]int{"n": i})
		}()
	}
	wg.Wait()

	total := 0
	for k := int64(0); k < 4; k++ {
		total += h.Count(k)
	}
	assert.Equal(t, workers, total)

	for i, c := range stay {
		key := int64(i % 4)
		v, ok := h.entries.Load(key)
		require.True(t, ok)
		assert.Contains(t, v.(*entry).snapshot(), c, fmt.Sprintf("conn %d", i))
	}
}

func TestHub_CloseClosesEverythingAndRefusesJoins(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")

	a, fa := newFakeConn(1)
	b, fb := newFakeConn(2)
	h.Join(1, a)
	h.Join(2, b)

	h.Close()
	req.Zero(h.Count(1))
	req.Zero(h.Count(2))
	for _, ft := range []*fakeTransport{fa, fb} {
		req.True(ft.isClosed())
		req.Contains(ft.controls, websocket.CloseMessage)
	}

	late, fl := newFakeConn(3)
	req.False(h.Join(1, late))
	req.True(fl.isClosed())
	req.Zero(h.Count(1))
}

func TestConn_GreetingIsFirstFrame(t *testing.T) {
	req := require.New(t)
	h := NewHub("room")
	c, ft := newFakeConn(1)

	joined, err := c.registerAndGreet(func() bool { return h.Join(7, c) }, ConnectedPayload{Event: EventRoomConnected, RoomID: 7})
	req.NoError(err)
	req.True(joined)
	h.Broadcast(7, map[string]string{"event": EventRoomMessage})

	frames := ft.received()
	req.Len(frames, 2)
	req.Equal(EventRoomConnected, decode(t, frames[0])["event"])
	req.Equal(EventRoomMessage, decode(t, frames[1])["event"])
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c, ft := newFakeConn(1)
	c.close(websocket.CloseGoingAway, "bye")
	c.close(websocket.CloseGoingAway, "bye")

	require.Equal(t, 1, ft.closeCalls)
	require.ErrorIs(t, c.write(websocket.TextMessage, []byte("x")), websocket.ErrCloseSent)
}
