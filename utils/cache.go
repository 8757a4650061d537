package utils

import (
	"context"
	"fmt"
	"time"

	"pawbook/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CacheClient backs wizard session snapshots and the booking status bus.
var CacheClient *redis.Client

// NewRedisClient opens a client on one logical database and checks it answers.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis db %d at %s: %w", db, addr, err)
	}
	return client, nil
}

// InitCache sets CacheClient from config or exits.
func InitCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := NewRedisClient(ctx, config.AppConfig.RedisAddr, config.AppConfig.RedisPassword, config.AppConfig.RedisCacheDB)
	if err != nil {
		GetLogger().Fatal("cache init failed", zap.Error(err))
	}
	CacheClient = client
}

// GetCacheClient returns the cache client, connecting on first use.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}
