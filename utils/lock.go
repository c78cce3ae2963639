package utils

import (
	"context"
	"errors"
	"time"

	"fitbook/config"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockNotAcquired is returned when the per-trainer lock could not be
// obtained before the caller's context expired.
var ErrLockNotAcquired = errors.New("trainer lock not acquired")

// releaseScript deletes the lock key only if it still holds our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisTrainerLock serializes booking writes per trainer across all service
// instances using SET NX with a TTL. An in-process mutex is not enough in a
// multi-instance deployment; the lock has to live in shared storage.
type RedisTrainerLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTrainerLock builds a lock manager over the dedicated lock client.
func NewRedisTrainerLock(client *redis.Client) *RedisTrainerLock {
	ttl := time.Duration(config.AppConfig.BookingLockTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisTrainerLock{client: client, ttl: ttl}
}

// Acquire blocks until the trainer's lock is held or ctx is done. It returns
// a release function that must be called once the check-then-write section
// is finished.
func (l *RedisTrainerLock) Acquire(ctx context.Context, trainerID string) (func(), error) {
	key := "booking_lock:" + trainerID
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			release := func() {
				relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(relCtx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, ErrLockNotAcquired
		case <-time.After(50 * time.Millisecond):
		}
	}
}
