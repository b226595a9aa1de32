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

// Redis holds a short-lived per-resource lock taken around the
// check-then-insert sequence, so two near-simultaneous requests for the
// same resource serialize before they reach the overlap check.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getResourceLockDuration returns the lock TTL from the environment or the default value
func (r *Redis) getResourceLockDuration() time.Duration {
	// Default lock TTL is 30 seconds; the lock only needs to outlive one
	// check-then-insert round trip.
	defaultDuration := 30 * time.Second

	lockTTLStr := os.Getenv("RESOURCE_LOCK_TTL_SECONDS")
	if lockTTLStr == "" {
		return defaultDuration
	}

	lockTTLSec, err := strconv.Atoi(lockTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid RESOURCE_LOCK_TTL_SECONDS value '" + lockTTLStr + "', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(lockTTLSec) * time.Second
}

// LockResource takes the lock for one resource on behalf of a booking
func (r *Redis) LockResource(resourceID, bookingID string) (bool, error) {
	key := "resource_lock:" + resourceID
	ok, err := r.Client.SetNX(context.Background(), key, bookingID, r.getResourceLockDuration()).Result()
	return ok, err
}

// UnlockResource releases the lock if this booking still owns it
func (r *Redis) UnlockResource(resourceID, bookingID string) error {
	ctx := context.Background()
	key := fmt.Sprintf("resource_lock:%s", resourceID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == bookingID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// IsLocked reports whether the resource is currently locked, without taking the lock
func (r *Redis) IsLocked(resourceID string) (bool, error) {
	key := "resource_lock:" + resourceID
	_, err := r.Client.Get(context.Background(), key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
