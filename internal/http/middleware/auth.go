package middleware

import (
	"context"
	"errors"
	"net/http"

	"chatroomgo/internal/auth"
	"chatroomgo/internal/services/account"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userCtxKey = "chat.user"

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*account.UserDTO, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// authenticated user on the gin context.
func RequireUser(v IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.FromRequest(c.Request)
		if err != nil {
			unauthorized(c, err)
			return
		}

		user, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			if !account.IsCredentialError(err) {
				zap.L().Error("auth.verify", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
				return
			}
			unauthorized(c, err)
			return
		}

		c.Set(userCtxKey, *user)
		c.Next()
	}
}

// CurrentUser returns the user stored by RequireUser.
func CurrentUser(c *gin.Context) (account.UserDTO, bool) {
	v, ok := c.Get(userCtxKey)
	if !ok {
		return account.UserDTO{}, false
	}
	u, ok := v.(account.UserDTO)
	return u, ok
}

func unauthorized(c *gin.Context, err error) {
	msg := "could not validate credentials"
	if errors.Is(err, auth.ErrMissingCredential) {
		msg = "not authenticated"
	}
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: msg})
}
