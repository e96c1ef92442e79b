package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bububa/regulation-agents/agents"
	"github.com/bububa/regulation-agents/schema"
)

// RedisCache shares answers between deployments
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ agents.Cache = (*RedisCache)(nil)

type RedisOption func(*RedisCache)

func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) {
		c.prefix = strings.Trim(prefix, ":")
	}
}

// NewRedis returns a redis cache, ttl 0 keeps entries until evicted by redis
func NewRedis(rdb *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisCache {
	c := &RedisCache{
		rdb:    rdb,
		prefix: "regagent:answer",
		ttl:    ttl,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) Key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (*schema.Answer, error) {
	data, err := c.rdb.Get(ctx, c.Key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	ret := new(schema.Answer)
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, answer *schema.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.Key(key), data, c.ttl).Err()
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
