// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"creatorhub/config"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

var (
	// LockClient backs the per-creator claim lock.
	LockClient *redis.Client
	// AuthCacheClient holds revoked token hashes.
	AuthCacheClient *redis.Client
)

func newRedisClient(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", name, err)
	}
	return client
}

// InitRedis connects every Redis client the service uses.
func InitRedis() {
	GetLockClient()
	GetAuthCacheClient()
}

// GetLockClient returns the Redis client used for claim locks.
func GetLockClient() *redis.Client {
	if LockClient == nil {
		LockClient = newRedisClient(config.AppConfig.RedisLockDB, "Lock")
	}
	return LockClient
}

// GetAuthCacheClient returns the Redis client for authorization caching.
func GetAuthCacheClient() *redis.Client {
	if AuthCacheClient == nil {
		AuthCacheClient = newRedisClient(config.AppConfig.RedisAuthDB, "Auth Cache")
	}
	return AuthCacheClient
}

// RedisClients lists the connected clients for health checks.
func RedisClients() []*redis.Client {
	var clients []*redis.Client
	for _, c := range []*redis.Client{LockClient, AuthCacheClient} {
		if c != nil {
			clients = append(clients, c)
		}
	}
	return clients
}

// QueueRedisOpt is the asynq connection for the task queue database.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}
