package database

import (
	"context"
	"fmt"
	"time"

	"github.com/admoderation/platform/pkg/common/config"
	"github.com/admoderation/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// OpenRedis builds a client and pings it. A failed ping is logged, not
// returned: the cache is optional on the read path and go-redis reconnects
// on its own.
func OpenRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Log.WithError(err).Error("Failed to connect to Redis")
	} else {
		logger.Log.Info("Connected to Redis")
	}

	return client
}
