package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"chatroomgo/internal/auth"
	"chatroomgo/internal/services/account"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const checkTimeout = 5 * time.Second

const (
	ReasonMissingCredential   = "missing_credential"
	ReasonMalformedCredential = "malformed_credential"
	ReasonInvalidCredential   = "invalid_credential"
	ReasonInvalidRoomID       = "invalid_room_id"
	ReasonRoomNotFound        = "room_not_found"
	ReasonNotAMember          = "not_a_member"
	ReasonInternal            = "internal_error"
)

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*account.UserDTO, error)
}

type MembershipOracle interface {
	RoomExists(ctx context.Context, roomID int64) (bool, error)
	IsMember(ctx context.Context, userID, roomID int64) (bool, error)
}

type GateOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	ReadLimit      int64
	AllowedOrigins []string
}

// Gate admits websocket sessions. Every check runs on the plain HTTP request;
// a refused handshake never gets upgraded and never touches a hub.
type Gate struct {
	rooms    *Hub
	direct   *Hub
	identity IdentityVerifier
	members  MembershipOracle
	opts     GateOptions
	upgrader websocket.Upgrader
}

func NewGate(rooms, direct *Hub, identity IdentityVerifier, members MembershipOracle, opts GateOptions) *Gate {
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.PongWait <= 0 {
		opts.PongWait = 60 * time.Second
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 512
	}

	g := &Gate{
		rooms:    rooms,
		direct:   direct,
		identity: identity,
		members:  members,
		opts:     opts,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     newOriginPolicy(opts.AllowedOrigins).check,
	}
	return g
}

func (g *Gate) Register(r gin.IRoutes) {
	r.GET("/ws/rooms/:room_id", g.HandleRoom)
	r.GET("/ws/direct", g.HandleDirect)
}

// @Summary		Open a room channel
// @Description	Upgrades to a websocket that receives every message posted to the room.
// @Description	The first frame is {"event":"rooms/connected"}. The bearer token may be passed as access_token.
// @Tags			WebSocket
// @Param			room_id			path		int		true	"Room ID"
// @Param			Authorization	header		string	false	"Bearer token"
// @Param			access_token	query		string	false	"Bearer token for browsers"
// @Success		101
// @Failure		400				{object}	RejectBody
// @Failure		401				{object}	RejectBody
// @Failure		403				{object}	RejectBody
// @Failure		404				{object}	RejectBody
// @Router			/ws/rooms/{room_id} [get]
func (g *Gate) HandleRoom(c *gin.Context) {
	user, ok := g.authenticate(c)
	if !ok {
		return
	}

	roomID, err := strconv.ParseInt(c.Param("room_id"), 10, 64)
	if err != nil || roomID <= 0 {
		g.reject(c, http.StatusBadRequest, ReasonInvalidRoomID, "room_id must be a positive integer")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	exists, err := g.members.RoomExists(ctx, roomID)
	if err != nil {
		g.fail(c, "room_exists", err)
		return
	}
	if !exists {
		g.reject(c, http.StatusNotFound, ReasonRoomNotFound, "room not found")
		return
	}

	member, err := g.members.IsMember(ctx, user.ID, roomID)
	if err != nil {
		g.fail(c, "is_member", err)
		return
	}
	if !member {
		g.reject(c, http.StatusForbidden, ReasonNotAMember, "not a member of this room")
		return
	}

	g.admit(c, g.rooms, roomID, user, ConnectedPayload{Event: EventRoomConnected, RoomID: roomID})
}

// @Summary		Open a direct-message channel
// @Description	Upgrades to a websocket that receives direct messages addressed to the caller.
// @Description	The first frame is {"event":"direct/connected"}.
// @Tags			WebSocket
// @Param			Authorization	header		string	false	"Bearer token"
// @Param			access_token	query		string	false	"Bearer token for browsers"
// @Success		101
// @Failure		401				{object}	RejectBody
// @Router			/ws/direct [get]
func (g *Gate) HandleDirect(c *gin.Context) {
	user, ok := g.authenticate(c)
	if !ok {
		return
	}
	g.admit(c, g.direct, user.ID, user, ConnectedPayload{Event: EventDirectConnected, UserID: user.ID})
}

func (g *Gate) authenticate(c *gin.Context) (*account.UserDTO, bool) {
	token, err := auth.FromRequest(c.Request)
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		g.reject(c, http.StatusUnauthorized, ReasonMissingCredential, "missing bearer token")
		return nil, false
	case err != nil:
		g.reject(c, http.StatusUnauthorized, ReasonMalformedCredential, "malformed authorization header")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	user, err := g.identity.Verify(ctx, token)
	if err != nil {
		if account.IsCredentialError(err) {
			g.reject(c, http.StatusUnauthorized, ReasonInvalidCredential, "could not validate credentials")
		} else {
			g.fail(c, "verify", err)
		}
		return nil, false
	}
	return user, true
}

func (g *Gate) admit(c *gin.Context, hub *Hub, key int64, user *account.UserDTO, greeting ConnectedPayload) {
	raw, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already answered with an HTTP error
		zap.L().Warn("ws.upgrade", zap.String("hub", hub.name), zap.Error(err))
		return
	}
	raw.SetReadLimit(g.opts.ReadLimit)

	conn := newConn(raw, user.ID, g.opts.WriteWait)
	joined, err := conn.registerAndGreet(func() bool { return hub.Join(key, conn) }, greeting)
	if !joined {
		conn.close(websocket.CloseGoingAway, "server shutdown")
		return
	}
	if err != nil {
		zap.L().Info("ws.greet_failed", zap.String("hub", hub.name), zap.Int64("key", key), zap.Error(err))
		hub.drop(key, conn, 0, "")
		return
	}

	zap.L().Info("ws.accept",
		zap.String("hub", hub.name),
		zap.Int64("key", key),
		zap.Int64("user_id", user.ID),
		zap.String("conn_id", conn.id),
	)

	go g.reader(hub, key, conn, raw)
	go g.pinger(hub, key, conn)
}

// reader drains the socket until the peer goes away. Inbound frames carry no
// meaning on these channels and are discarded.
func (g *Gate) reader(hub *Hub, key int64, conn *Conn, raw *websocket.Conn) {
	defer hub.drop(key, conn, 0, "")

	extend := func() error { return raw.SetReadDeadline(time.Now().Add(g.opts.PongWait)) }
	_ = extend()
	raw.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.String("conn_id", conn.id), zap.Error(err))
			}
			return
		}
		_ = extend()
	}
}

func (g *Gate) pinger(hub *Hub, key int64, conn *Conn) {
	ticker := time.NewTicker(g.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-conn.closed():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				zap.L().Debug("ws.ping", zap.String("conn_id", conn.id), zap.Error(err))
				hub.drop(key, conn, 0, "")
				return
			}
		}
	}
}

func (g *Gate) reject(c *gin.Context, status int, reason, msg string) {
	zap.L().Info("ws.reject",
		zap.String("path", c.FullPath()),
		zap.Int("status", status),
		zap.String("reason", reason),
	)
	c.AbortWithStatusJSON(status, RejectBody{
		Code:   websocket.ClosePolicyViolation,
		Reason: reason,
		Error:  msg,
	})
}

func (g *Gate) fail(c *gin.Context, step string, err error) {
	zap.L().Error("ws.check_failed", zap.String("step", step), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, RejectBody{
		Code:   websocket.CloseInternalServerErr,
		Reason: ReasonInternal,
		Error:  "internal error",
	})
}
