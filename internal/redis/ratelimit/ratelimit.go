package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "chat_rl:"

var ErrRateLimited = errors.New("rate limited")

type functionCaller interface {
	FCall(ctx context.Context, function string, keys []string, args ...interface{}) *redis.Cmd
}

// Limiter counts sends per user inside a fixed window, using the
// chat_rate_limit Redis Function from redis_functions/chat.lua.
type Limiter struct {
	rdb    functionCaller
	limit  int
	window time.Duration
}

// New returns a limiter allowing limit hits per window. A limit of 0 disables
// limiting.
func New(rdb functionCaller, limit int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow records one send for userID and returns ErrRateLimited when the
// window budget is exhausted. Redis failures fail open.
func (l *Limiter) Allow(ctx context.Context, userID int64) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	key := keyPrefix + strconv.FormatInt(userID, 10)
	err := l.rdb.FCall(ctx, "chat_rate_limit", []string{key},
		l.window.Milliseconds(),
		l.limit,
	).Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "rate_limited") {
		return ErrRateLimited
	}
	zap.L().Warn("ratelimit.fcall", zap.Int64("user_id", userID), zap.Error(err))
	return nil
}
