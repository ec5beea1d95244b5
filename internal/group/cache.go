package group

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// MembershipCache fronts the room resolution query that runs on every
// websocket connect. A miss (or an unavailable backend) falls back to the
// store; the cache is never authoritative.
type MembershipCache interface {
	GroupIDs(ctx context.Context, userID int64) ([]int64, bool)
	SetGroupIDs(ctx context.Context, userID int64, ids []int64)
	Invalidate(ctx context.Context, userIDs ...int64)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func membershipKey(userID int64) string {
	return fmt.Sprintf("murmur:groups:u:%d", userID)
}

func (c *RedisCache) GroupIDs(ctx context.Context, userID int64) ([]int64, bool) {
	vals, err := c.client.SMembers(ctx, membershipKey(userID)).Result()
	if err != nil || len(vals) == 0 {
		// Empty sets are not cached, so empty always means miss.
		return nil, false
	}

	ids := make([]int64, 0, len(vals))
	for _, v := range vals {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

func (c *RedisCache) SetGroupIDs(ctx context.Context, userID int64, ids []int64) {
	if len(ids) == 0 {
		return
	}
	key := membershipKey(userID)
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = strconv.FormatInt(id, 10)
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Debug("membership cache write failed", "user", userID, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, userIDs ...int64) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = membershipKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Debug("membership cache invalidation failed", "error", err)
	}
}
