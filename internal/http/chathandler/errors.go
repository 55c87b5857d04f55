package chathandler

import (
	"errors"
	"net/http"

	"chatroomgo/internal/redis/ratelimit"
	"chatroomgo/internal/services/account"
	"chatroomgo/internal/services/message"
	"chatroomgo/internal/services/room"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, account.ErrUsernameTaken),
		errors.Is(err, room.ErrRoomNameTaken),
		errors.Is(err, message.ErrEmptyContent),
		errors.Is(err, message.ErrContentTooLong):
		return http.StatusBadRequest
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, room.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, account.ErrUserNotFound),
		errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its sentinel maps to. Unmapped errors are
// logged and hidden behind a generic message.
func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zap.L().Error("http.handler", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "internal error"
	}
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}
