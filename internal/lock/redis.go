// Package lock provides short-lived slot claims in Redis. They shed
// contention before the ledger transaction; the ledger stays authoritative.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token, so an
// expired claim never releases someone else's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLock struct {
	client redis.UniversalClient
}

func NewRedisLock(client redis.UniversalClient) *RedisLock {
	return &RedisLock{client: client}
}

// Lock claims key for ttl. ok is false when someone else holds it.
func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	const op = "lock.RedisLock.Lock"

	lockKey := fmt.Sprintf("lock:%s", key)
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		const op = "lock.RedisLock.Unlock"
		if err := releaseScript.Run(ctx, r.client, []string{lockKey}, token).Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	return release, true, nil
}

// SlotKey names the claim for one employee start time.
func SlotKey(employeeID int64, date, start string) string {
	return fmt.Sprintf("slot:%d:%s:%s", employeeID, date, start)
}
