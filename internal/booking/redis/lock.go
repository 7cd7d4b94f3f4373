package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis serializes admission-control critical sections with one SetNX
// lock per (tenant, event) pair. The TTL only guards against a crashed
// holder; normal flow releases explicitly.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger

	// TTL overrides the environment-derived lock duration when set.
	TTL time.Duration
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

func lockKey(tenantID, eventID string) string {
	return fmt.Sprintf("admission_lock:%s:%s", tenantID, eventID)
}

// getLockDuration returns the configured admission lock TTL, falling
// back to the environment and then the default value.
func (r *Redis) getLockDuration() time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}

	defaultDuration := 10 * time.Second

	lockTTLStr := os.Getenv("ADMISSION_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid ADMISSION_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 10 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// Acquire takes the (tenant, event) lock for the given owner token.
// Returns false when another owner holds it.
func (r *Redis) Acquire(ctx context.Context, tenantID, eventID, token string) (bool, error) {
	key := lockKey(tenantID, eventID)
	return r.Client.SetNX(ctx, key, token, r.getLockDuration()).Result()
}

// Release frees the lock, but only if the given token still owns it. A
// lock that expired and was re-acquired by someone else stays put.
func (r *Redis) Release(ctx context.Context, tenantID, eventID, token string) error {
	key := lockKey(tenantID, eventID)

	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsLocked reports whether some owner currently holds the lock, without
// taking it.
func (r *Redis) IsLocked(ctx context.Context, tenantID, eventID string) (bool, error) {
	_, err := r.Client.Get(ctx, lockKey(tenantID, eventID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
