package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dripsheet/dripsheet/internal/config"
)

// ErrLockHeld is returned when another holder owns the lock
var ErrLockHeld = errors.New("lock is held by another process")

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only if the key still holds our token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis wraps the Redis client
type Redis struct {
	*redis.Client
}

// NewRedis creates a new Redis connection
func NewRedis(cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{Client: client}, nil
}

// HealthCheck verifies the Redis connection is healthy
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.Ping(ctx).Err()
}

// AcquireLock sets key to token if it is unset, with a TTL so a crashed
// holder cannot block forever
func (r *Redis) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) error {
	ok, err := r.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// ExtendLock pushes the expiry of a lock we hold out to ttl from now. It
// returns ErrLockHeld if the key expired or now belongs to someone else.
func (r *Redis) ExtendLock(ctx context.Context, key, token string, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, r.Client, []string{key}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}

// ReleaseLock removes key if it still holds token
func (r *Redis) ReleaseLock(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.Client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
