package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"chatroomgo/internal/auth"
	"chatroomgo/internal/config"
	"chatroomgo/internal/database/db_client"
	"chatroomgo/internal/database/schema"
	"chatroomgo/internal/http/chathandler"
	"chatroomgo/internal/http/http_server"
	"chatroomgo/internal/redis/ratelimit"
	"chatroomgo/internal/redis/redis_client"
	"chatroomgo/internal/redis/redis_functions"
	"chatroomgo/internal/services/account"
	"chatroomgo/internal/services/message"
	"chatroomgo/internal/services/room"
	"chatroomgo/internal/ws"

	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

//	@title			chatroomgo
//	@version		1.0
//	@description	Rooms, direct messages and real-time delivery over websockets.
//	@BasePath		/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Uint16("http_port", cfg.HttpServerPort))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPass, cfg.RedisDb)
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	if _, err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		Log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	if err := schema.ApplyAll(ctx, pgDb); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Services
	tokens := auth.NewTokenManager(cfg.JwtSecret, cfg.JwtTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	accountService := account.NewAccountService(pgDb, tokens, hasher)
	roomService := room.NewRoomService(pgDb, redisClient, cfg.MembershipCacheTTL)

	// 6. Connection registries and delivery
	roomHub := ws.NewHub("room")
	directHub := ws.NewHub("direct")
	notifier := ws.NewNotifier(roomHub, directHub)

	limiter := ratelimit.New(redisClient, cfg.SendRateLimit, cfg.SendRateWindow)
	messageService := message.NewMessageService(message.NewPgStore(pgDb), roomService, accountService, limiter, notifier)

	// 7. Session gate
	gate := ws.NewGate(roomHub, directHub, accountService, roomService, ws.GateOptions{
		WriteWait:      cfg.WsWriteWait,
		PongWait:       cfg.WsPongWait,
		PingPeriod:     cfg.WsPingPeriod,
		ReadLimit:      cfg.WsReadLimit,
		AllowedOrigins: cfg.WsAllowedOrigins,
	})

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, gate,
		chathandler.New(accountService, roomService, messageService, roomHub),
		map[string]http_server.HealthCheck{
			"postgres": pgDb.PingContext,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Start() }()

	select {
	case <-ctx.Done():
		Log.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			Log.Error("Failed to start HTTP server", zap.Error(err))
		}
	}

	_ = httpServer.Dispose()
	roomHub.Close()
	directHub.Close()
}
