// Package cache holds the progression snapshot cache used by the services layer.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"classroom-economy/services"

	"github.com/redis/go-redis/v9"
)

// PrefixSnapshot namespaces snapshot keys.
const PrefixSnapshot = "progress:snapshot:"

// RedisCache stores snapshots as JSON with a TTL. Cache errors are logged and treated
// as misses; the ledger stays the source of truth.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects using a redis:// URL and pings once.
func NewRedisCache(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCacheFromClient(client, ttl), nil
}

func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func key(userID string) string {
	return PrefixSnapshot + userID
}

func (c *RedisCache) GetSnapshot(ctx context.Context, userID string) (*services.Snapshot, bool) {
	raw, err := c.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Printf("[Cache] get %s: %v", userID, err)
		return nil, false
	}
	var snap services.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Printf("[Cache] corrupt snapshot for %s: %v", userID, err)
		return nil, false
	}
	return &snap, true
}

func (c *RedisCache) SetSnapshot(ctx context.Context, snap *services.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key(snap.UserID), raw, c.ttl).Err(); err != nil {
		log.Printf("[Cache] set %s: %v", snap.UserID, err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[Cache] invalidate %v: %v", userIDs, err)
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
