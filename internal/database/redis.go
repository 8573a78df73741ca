package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/smarttransit/booking-engine/internal/config"
)

// NewRedisClient connects to the seat map cache. It returns nil when the
// cache is disabled or unreachable; callers treat nil as "no cache".
func NewRedisClient(cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.Addr).Warn("Redis unreachable, seat map cache disabled")
		_ = client.Close()
		return nil
	}

	logger.WithField("addr", cfg.Addr).Info("Redis connected")
	return client
}
