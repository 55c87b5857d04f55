package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"chatroomgo/internal/http/chathandler"
	"chatroomgo/internal/ws"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	gate       *ws.Gate
	handler    *chathandler.Handler
	health     map[string]HealthCheck
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, gate *ws.Gate, handler *chathandler.Handler,
	health map[string]HealthCheck) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		gate:       gate,
		handler:    handler,
		health:     health,
		ctx:        ctx,
	}
}

// Routes builds the gin engine. It is separate from Start so tests can drive
// it through httptest.
func (h *httpServer) Routes() *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.GET("/healthz", h.healthz)

	// websocket endpoints
	h.gate.Register(routerEngine)

	// REST API
	h.handler.Register(routerEngine)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("http.listen", zap.String("addr", listenAddr))

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// @Summary		Health check
// @Tags			Health
// @Success		200	{object}	map[string]string
// @Failure		503	{object}	map[string]string
// @Router			/healthz [get]
func (h *httpServer) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := map[string]string{"status": "ok"}
	for name, check := range h.health {
		if err := check(ctx); err != nil {
			zap.L().Warn("http.healthz", zap.String("dependency", name), zap.Error(err))
			out[name] = err.Error()
			out["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		out[name] = "ok"
	}
	c.JSON(status, out)
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in‑flight requests to finish. Upgraded websockets
// are not tracked by http.Server and are closed through their hubs.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err
	}
	return nil
}
