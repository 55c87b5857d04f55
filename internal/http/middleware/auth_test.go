package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatroomgo/internal/auth"
	"chatroomgo/internal/services/account"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type verifierFunc func(ctx context.Context, token string) (*account.UserDTO, error)

func (f verifierFunc) Verify(ctx context.Context, token string) (*account.UserDTO, error) {
	return f(ctx, token)
}

func newRouter(v IdentityVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", RequireUser(v), func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.JSON(http.StatusOK, u)
	})
	return r
}

func TestRequireUser(t *testing.T) {
	v := verifierFunc(func(_ context.Context, token string) (*account.UserDTO, error) {
		switch token {
		case "good":
			return &account.UserDTO{ID: 1, Username: "alice"}, nil
		case "expired":
			return nil, auth.ErrExpiredToken
		case "orphan":
			return nil, account.ErrUnknownSubject
		default:
			return nil, errors.New("connection refused")
		}
	})
	r := newRouter(v)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer good", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"expired", "Bearer expired", http.StatusUnauthorized},
		{"unknown subject", "Bearer orphan", http.StatusUnauthorized},
		{"verifier down", "Bearer boom", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
			if tt.status != http.StatusOK {
				var body ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				require.NotEmpty(t, body.Error)
			}
			if tt.status == http.StatusOK {
				require.JSONEq(t, `{"id":1,"username":"alice"}`, w.Body.String())
			}
		})
	}
}
