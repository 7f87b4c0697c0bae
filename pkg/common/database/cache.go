package database

import (
	"context"

	"github.com/admoderation/platform/pkg/cache"
	"github.com/admoderation/platform/pkg/common/config"
	"github.com/admoderation/platform/pkg/common/logger"
)

// OpenCache selects the cache backend named by CACHE_BACKEND. The returned
// close func releases the backend's connections.
func OpenCache(ctx context.Context, cfg *config.Config) (cache.Cache, func() error) {
	switch cfg.CacheBackend {
	case "memory":
		logger.Log.Warn("Using in-process cache; entries are not shared between processes")
		return cache.NewMemory(), func() error { return nil }
	default:
		rc := cache.NewRedisCache(OpenRedis(ctx, cfg))
		return rc, rc.Close
	}
}
