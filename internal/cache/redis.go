package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mastAk7/finvest/internal/config"
)

const connectTimeout = 5 * time.Second

// ConnectRedis dials the Redis instance named in cfg and verifies it is
// reachable before handing the client out. The same client backs the ranked
// offer cache, the task queue and the mock email store.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr, err)
	}

	log.Printf("INFO: connected to redis at %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
	return rdb, nil
}

// DisconnectRedis closes the client. Safe to call with nil.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	log.Println("INFO: redis connection closed")
	return nil
}
