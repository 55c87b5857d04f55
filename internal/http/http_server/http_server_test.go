package http_server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatroomgo/internal/http/chathandler"
	"chatroomgo/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestServer(health map[string]HealthCheck) *httpServer {
	gin.SetMode(gin.TestMode)
	rooms := ws.NewHub("room")
	gate := ws.NewGate(rooms, ws.NewHub("direct"), nil, nil, ws.GateOptions{})
	return NewHttpServer(context.Background(), 8085, gate, chathandler.New(nil, nil, nil, rooms), health)
}

func TestHealthz(t *testing.T) {
	req := require.New(t)

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	r := newTestServer(map[string]HealthCheck{"postgres": ok, "redis": ok}).Routes()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"status":"ok","postgres":"ok","redis":"ok"}`, w.Body.String())

	r = newTestServer(map[string]HealthCheck{"postgres": ok, "redis": down}).Routes()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	req.Equal(http.StatusServiceUnavailable, w.Code)
	req.Contains(w.Body.String(), `"status":"degraded"`)
}

func TestRoutes_RegistersEndpoints(t *testing.T) {
	r := newTestServer(nil).Routes()

	want := map[string]bool{
		"GET /ws/rooms/:room_id":             false,
		"GET /ws/direct":                     false,
		"POST /auth/login":                   false,
		"POST /rooms/:id/messages":           false,
		"POST /messages/direct/:receiver_id": false,
		"GET /healthz":                       false,
	}
	for _, ri := range r.Routes() {
		key := ri.Method + " " + ri.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for route, found := range want {
		require.True(t, found, route)
	}
}

func TestRoutes_WebsocketRejectsWithoutToken(t *testing.T) {
	r := newTestServer(nil).Routes()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/direct", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), `"reason":"missing_credential"`)
}
