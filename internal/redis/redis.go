package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptmaster/internal/config"

	redis "github.com/redis/go-redis/v9"
)

var errNotInitialized = errors.New("redis client not initialized")

// Client wraps go-redis client to centralize configuration.
type Client struct {
	inner *redis.Client
}

// NewRedisClient creates the redis client from app config and pings it.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return &Client{inner: client}, nil
}

// NewFromRaw wraps an existing go-redis client.
func NewFromRaw(inner *redis.Client) *Client {
	return &Client{inner: inner}
}

// IncrWindow increments key and starts its expiry on the first hit of a
// window. It returns the count so far and the time left in the window.
func (c *Client) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if c == nil || c.inner == nil {
		return 0, 0, errNotInitialized
	}
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.inner.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

// Del removes provided keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if c == nil || c.inner == nil {
		return errNotInitialized
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

// Close closes client.
func (c *Client) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
