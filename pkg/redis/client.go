package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/davidnjeri/carhub-backend/pkg/config"
	goredis "github.com/redis/go-redis/v9"
)

// cmdable is the slice of the go-redis API the service uses.
type cmdable interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *goredis.BoolCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Client struct {
	rdb       cmdable
	namespace string
	closer    func() error
}

func New(cfg config.RedisConfig) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{rdb: rdb, namespace: cfg.Namespace, closer: rdb.Close}
}

// NewWithCmdable is for tests that stub the redis API.
func NewWithCmdable(rdb cmdable, namespace string) *Client {
	return &Client{rdb: rdb, namespace: namespace}
}

func (c *Client) buildKey(parts ...string) string {
	key := c.namespace
	for _, part := range parts {
		key += ":" + part
	}
	return key
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// IdempotencyStore exposes the operations the idempotency middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

// IdempotencyKey returns a namespaced key for idempotency storage.
func (c *Client) IdempotencyKey(scope, id string) string {
	return c.buildKey("idem", scope, id)
}

// PaymentGuardKey marks a user's in-flight payment attempt.
func (c *Client) PaymentGuardKey(userID string) string {
	return c.buildKey("pay", "inflight", userID)
}

// AccessSessionKey stores refresh session state per access token id.
func (c *Client) AccessSessionKey(accessID string) string {
	return c.buildKey("session", accessID)
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX returns true when the key was absent and is now claimed.
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FixedWindowAllow increments a per-window counter and reports whether
// the call stays within limit for the window.
func (c *Client) FixedWindowAllow(ctx context.Context, bucket string, limit int64, window time.Duration) (bool, error) {
	windowStart := time.Now().Unix() / int64(window.Seconds())
	key := c.buildKey("rate", bucket, fmt.Sprintf("%d", windowStart))

	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= limit, nil
}
