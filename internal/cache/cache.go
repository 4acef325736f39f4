package cache

import (
	"fmt"

	"github.com/opensource-retail/heron/internal/domain"
)

// New creates a new cache based on configuration.
// "memory" returns the in-process LRU cache; "redis" returns a Redis-backed
// cache for multi-node deployments.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil

	case "redis":
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
