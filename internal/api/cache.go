package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"salonbook/internal/events"
)

func (c *Client) cacheEnabled() bool {
	return c.redis != nil && c.cacheTTL > 0
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if !c.cacheEnabled() {
		return false
	}
	val, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if !c.cacheEnabled() {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// invalidate drops cached availability of the employee and every cached
// booking list.
func (c *Client) invalidate(ctx context.Context, employeeID int64) {
	if !c.cacheEnabled() {
		return
	}
	ClearCache(ctx, c.redis, employeeID, c.logger)
}

// ClearCache drops what any Client sharing rdb cached for employeeID, plus
// every cached booking list. Failures are logged; entries then expire by TTL.
func ClearCache(ctx context.Context, rdb redis.UniversalClient, employeeID int64, logger *zerolog.Logger) {
	patterns := []string{
		fmt.Sprintf("%savail:%d:*", cachePrefix, employeeID),
		cachePrefix + "bookings:*",
	}
	for _, pattern := range patterns {
		iter := rdb.Scan(ctx, 0, pattern, 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("cache scan failed")
			continue
		}
		if len(keys) == 0 {
			continue
		}
		if err := rdb.Del(ctx, keys...).Err(); err != nil {
			logger.Warn().Err(err).Str("pattern", pattern).Msg("cache invalidation failed")
		}
	}
}

type Subscriber interface {
	Subscribe(eventType string, h events.Handler) (unsubscribe func())
}

// ClearCacheOn clears the consumer cache on every booking event published on
// bus, so mutations that bypass the HTTP API are not served stale.
func ClearCacheOn(bus Subscriber, rdb redis.UniversalClient, logger *zerolog.Logger) (unsubscribe func()) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	handler := func(e events.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ClearCache(ctx, rdb, e.EmployeeID, logger)
		return nil
	}
	var offs []func()
	for _, t := range []string{events.BookingCreated, events.BookingCancelled, events.BookingCompleted} {
		offs = append(offs, bus.Subscribe(t, handler))
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
