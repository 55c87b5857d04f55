package chathandler

import (
	"net/http"
	"strconv"

	"chatroomgo/internal/http/middleware"
	"chatroomgo/internal/services/account"
	"chatroomgo/internal/services/message"
	"chatroomgo/internal/services/room"
	"chatroomgo/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// roomSessions ends the live room sockets of a user who is no longer a member.
type roomSessions interface {
	LeaveUser(roomID, userID int64) int
}

type Handler struct {
	accounts account.IAccountService
	rooms    room.IRoomService
	messages message.IMessageService
	sessions roomSessions
}

func New(accounts account.IAccountService, rooms room.IRoomService, messages message.IMessageService,
	sessions roomSessions) *Handler {
	return &Handler{accounts: accounts, rooms: rooms, messages: messages, sessions: sessions}
}

func (h *Handler) Register(r gin.IRouter) {
	r.POST("/auth/signup", h.signUp)
	r.POST("/auth/login", h.login)
	r.GET("/users", h.listUsers)
	r.GET("/rooms", h.listRooms)

	authed := r.Group("/", middleware.RequireUser(h.accounts))
	authed.GET("/users/me", h.me)
	authed.POST("/rooms", h.createRoom)
	authed.POST("/rooms/:id/join", h.joinRoom)
	authed.POST("/rooms/:id/leave", h.leaveRoom)
	authed.GET("/rooms/:id/members", h.roomMembers)
	authed.POST("/rooms/:id/messages", h.sendRoomMessage)
	authed.GET("/rooms/:id/messages", h.roomHistory)
	authed.POST("/messages/direct/:receiver_id", h.sendDirectMessage)
	authed.GET("/messages/direct/:receiver_id", h.directHistory)
}

// @Summary		Sign up
// @Tags			Auth
// @Param			body	body		SignUpBody	true	"Credentials"
// @Success		200		{object}	account.UserDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/auth/signup [post]
func (h *Handler) signUp(c *gin.Context) {
	var body SignUpBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	u, err := h.accounts.SignUp(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary		Log in
// @Description	Accepts JSON or an application/x-www-form-urlencoded password form.
// @Tags			Auth
// @Param			body	body		LoginBody	true	"Credentials"
// @Success		200		{object}	account.TokenDTO
// @Failure		401		{object}	ErrorResponse
// @Router			/auth/login [post]
func (h *Handler) login(c *gin.Context) {
	var body LoginBody
	if err := c.ShouldBind(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	tok, err := h.accounts.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

// @Summary		List users
// @Tags			Users
// @Param			limit	query	int	false	"Max results"	default(50)
// @Param			offset	query	int	false	"Offset"		default(0)
// @Success		200		{array}	account.UserDTO
// @Router			/users [get]
func (h *Handler) listUsers(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.accounts.ListUsers(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Current user
// @Tags			Users
// @Security		BearerAuth
// @Success		200	{object}	account.UserDTO
// @Failure		401	{object}	ErrorResponse
// @Router			/users/me [get]
func (h *Handler) me(c *gin.Context) {
	u, _ := middleware.CurrentUser(c)
	c.JSON(http.StatusOK, u)
}

// @Summary		Create a room
// @Description	The caller becomes the owner and first member.
// @Tags			Rooms
// @Security		BearerAuth
// @Param			body	body		CreateRoomBody	true	"Room"
// @Success		200		{object}	room.RoomDTO
// @Failure		400		{object}	ErrorResponse
// @Router			/rooms [post]
func (h *Handler) createRoom(c *gin.Context) {
	var body CreateRoomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	u, _ := middleware.CurrentUser(c)
	dto, err := h.rooms.Create(c.Request.Context(), u.ID, body.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// @Summary		List rooms
// @Tags			Rooms
// @Param			limit	query	int	false	"Max results"	default(50)
// @Param			offset	query	int	false	"Offset"		default(0)
// @Success		200		{array}	room.RoomDTO
// @Router			/rooms [get]
func (h *Handler) listRooms(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.rooms.List(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Join a room
// @Tags			Rooms
// @Security		BearerAuth
// @Param			id	path	int	true	"Room ID"
// @Success		204
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id}/join [post]
func (h *Handler) joinRoom(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, _ := middleware.CurrentUser(c)
	if err := h.rooms.Join(c.Request.Context(), u.ID, roomID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary		Leave a room
// @Description	Also closes the caller's open sockets on the room.
// @Tags			Rooms
// @Security		BearerAuth
// @Param			id	path	int	true	"Room ID"
// @Success		204
// @Router			/rooms/{id}/leave [post]
func (h *Handler) leaveRoom(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	u, _ := middleware.CurrentUser(c)
	if err := h.rooms.Leave(c.Request.Context(), u.ID, roomID); err != nil {
		fail(c, err)
		return
	}
	h.sessions.LeaveUser(roomID, u.ID)
	c.Status(http.StatusNoContent)
}

// @Summary		Room members
// @Tags			Rooms
// @Security		BearerAuth
// @Param			id	path		int	true	"Room ID"
// @Success		200	{array}		room.MemberDTO
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id}/members [get]
func (h *Handler) roomMembers(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.rooms.Get(c.Request.Context(), roomID); err != nil {
		fail(c, err)
		return
	}
	out, err := h.rooms.Members(c.Request.Context(), roomID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Ternary(out == nil, []room.MemberDTO{}, out))
}

// @Summary		Post to a room
// @Description	Persists the message and pushes it to every open socket of the room.
// @Tags			Messages
// @Security		BearerAuth
// @Param			id		path		int				true	"Room ID"
// @Param			body	body		SendMessageBody	true	"Message"
// @Success		201		{object}	ws.RoomMessagePayload
// @Failure		400		{object}	ErrorResponse
// @Failure		403		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		429		{object}	ErrorResponse
// @Router			/rooms/{id}/messages [post]
func (h *Handler) sendRoomMessage(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var body SendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	u, _ := middleware.CurrentUser(c)
	msg, err := h.messages.SendRoomMessage(c.Request.Context(), u, roomID, body.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws.NewRoomMessagePayload(msg))
}

// @Summary		Room history
// @Description	Oldest first. Members only.
// @Tags			Messages
// @Security		BearerAuth
// @Param			id		path		int	true	"Room ID"
// @Param			limit	query		int	false	"Max results"	default(50)
// @Param			offset	query		int	false	"Offset"		default(0)
// @Success		200		{array}		ws.RoomMessagePayload
// @Failure		403		{object}	ErrorResponse
// @Router			/rooms/{id}/messages [get]
func (h *Handler) roomHistory(c *gin.Context) {
	roomID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	u, _ := middleware.CurrentUser(c)
	list, err := h.messages.ListRoomMessages(c.Request.Context(), u.ID, roomID, q.Limit, q.Offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(list, func(m message.RoomMessage, _ int) ws.RoomMessagePayload {
		return ws.NewRoomMessagePayload(&m)
	}))
}

// @Summary		Send a direct message
// @Tags			Messages
// @Security		BearerAuth
// @Param			receiver_id	path		int				true	"Receiver user ID"
// @Param			body		body		SendMessageBody	true	"Message"
// @Success		201			{object}	ws.DirectMessagePayload
// @Failure		404			{object}	ErrorResponse
// @Failure		429			{object}	ErrorResponse
// @Router			/messages/direct/{receiver_id} [post]
func (h *Handler) sendDirectMessage(c *gin.Context) {
	receiverID, ok := pathID(c, "receiver_id")
	if !ok {
		return
	}
	var body SendMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	u, _ := middleware.CurrentUser(c)
	msg, err := h.messages.SendDirectMessage(c.Request.Context(), u, receiverID, body.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ws.NewDirectMessagePayload(msg))
}

// @Summary		Direct message history
// @Description	Messages the caller sent to the receiver.
// @Tags			Messages
// @Security		BearerAuth
// @Param			receiver_id	path	int	true	"Receiver user ID"
// @Param			limit		query	int	false	"Max results"	default(50)
// @Param			offset		query	int	false	"Offset"		default(0)
// @Success		200			{array}	ws.DirectMessagePayload
// @Router			/messages/direct/{receiver_id} [get]
func (h *Handler) directHistory(c *gin.Context) {
	receiverID, ok := pathID(c, "receiver_id")
	if !ok {
		return
	}
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	u, _ := middleware.CurrentUser(c)
	list, err := h.messages.ListDirectMessages(c.Request.Context(), u.ID, receiverID, q.Limit, q.Offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lo.Map(list, func(m message.DirectMessage, _ int) ws.DirectMessagePayload {
		return ws.NewDirectMessagePayload(&m)
	}))
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
