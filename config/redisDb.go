package config

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns nil when REDIS_ADDRESS is unset; session lookup and
// rate limiting are then disabled. The client connects lazily.
func NewRedisClient() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		log.Printf("REDIS_ADDRESS not set; redis features disabled")
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
		PoolSize: 100,
	})
}

// ConnectRedisWithRetry pings rdb until it answers. Retries are bounded by ctx.
func ConnectRedisWithRetry(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}

	var attempt int
	for {
		attempt++
		err := rdb.Ping(ctx).Err()
		if err == nil {
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, rdb.Options().Addr)
			return nil
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, rdb.Options().Addr, err, sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// GetRedisValue reports (value, exists, err). A nil client is treated as an
// empty cache.
func GetRedisValue(ctx context.Context, rdb *redis.Client, key string) (string, bool, error) {
	if rdb == nil {
		return "", false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}
