package cachex

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is a thin wrapper over a Redis connection exposing the key/value
// surface the services need: get, set-with-TTL, delete, exists and ttl.
type Client struct {
	rdb *redis.Client
}

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = errors.New("cachex: key not found")

func Open(addr string) *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	return &Client{rdb: rdb}
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return v, err
}

func (c *Client) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rdb.TTL(ctx, key).Result()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Raw exposes the underlying client for callers that need redis-specific
// features (e.g. the httpx rate limiter scripts).
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

func ReadyCheck(c *Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if c == nil || c.rdb == nil {
			return errors.New("redis not configured")
		}
		return c.rdb.Ping(ctx).Err()
	}
}
