// Package cache stores aggregated answers by query fingerprint
package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bububa/regulation-agents/agents"
)

type Backend string

const (
	None   Backend = "none"
	Memory Backend = "memory"
	Redis  Backend = "redis"
)

// Config answer cache config
type Config struct {
	Backend Backend       `mapstructure:"backend" validate:"omitempty,oneof=none memory redis"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	// MaxEntries bounds the memory backend, 0 means unbounded
	MaxEntries int         `mapstructure:"max_entries" validate:"gte=0"`
	Redis      RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix"`
}

// New returns the configured cache, nil when caching is disabled
func New(cfg Config) (agents.Cache, error) {
	switch cfg.Backend {
	case None, "":
		return nil, nil
	case Memory:
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case Redis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis cache: empty addr")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		var opts []RedisOption
		if cfg.Redis.Prefix != "" {
			opts = append(opts, WithPrefix(cfg.Redis.Prefix))
		}
		return NewRedis(rdb, cfg.TTL, opts...), nil
	}
	return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
}
