package database

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// InitRedis returns a connected client, or nil when Redis is not reachable.
// Callers treat a nil client as "no Redis": phone verification is then
// unavailable and the bank poll falls back to the database gate alone.
func InitRedis(ctx context.Context) *redis.Client {
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	addr := viper.GetString("redis.host") + ":" + viper.GetString("redis.port")
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    viper.GetString("redis.password"),
		DB:          viper.GetInt("redis.db"),
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Printf("[REDIS] Connection to %s failed, continuing without Redis: %v", addr, err)
		rdb.Close()
		return nil
	}

	log.Printf("[REDIS] Connected to %s", addr)
	return rdb
}

// TryLease takes a best-effort lease that expires on its own after ttl. It
// reports false when another holder already has it.
func TryLease(ctx context.Context, rdb *redis.Client, key, holder string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, holder, ttl).Result()
}
