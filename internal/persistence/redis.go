package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/config"
)

const redisDialTimeout = 5 * time.Second

// Redis holds the session store client. A comma separated address list
// yields a cluster client.
type Redis struct {
	Client redis.UniversalClient
}

// NewRedis builds the client and checks the server once. An unreachable
// server is logged, not fatal; readiness keeps reporting it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	addrs := strings.Split(cfg.Addr, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       addrs,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable; sessions will fail until it recovers",
			zap.Strings("addrs", addrs), zap.Error(err))
	} else {
		logger.Info("redis session store ready", zap.Strings("addrs", addrs))
	}
	return &Redis{Client: client}
}

// Close releases the client.
func (r *Redis) Close() {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Close()
}

// Ping reports whether Redis answers.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
