package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/workpulse/survey/config"
)

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client from cfg and verifies connectivity.
func NewClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &Client{Client: rdb, logger: logger}, nil
}

// Close closes the connection pool and logs failures instead of returning them.
func (c *Client) Close() {
	if err := c.Client.Close(); err != nil {
		c.logger.Warn("close redis client", zap.Error(err))
	}
}
