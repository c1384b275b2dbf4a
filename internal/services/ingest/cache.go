package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	msg "github.com/LeonardoBeccarini/greenhouse_pipeline/internal/model/messages"
)

// DefaultTenant is the reserved sentinel used when no tenant is known
// (backward compatibility for the read API).
const DefaultTenant = "_default"

const (
	cacheKeyPrefix  = "greenhouse:messages:"
	defaultCacheCap = 1000
	defaultCacheTTL = 24 * time.Hour
)

// MessageStore is the ordered-set primitive the cache sits on: add with
// score, reverse range by rank and by score, size, expire, delete.
type MessageStore interface {
	Add(ctx context.Context, key string, score float64, member string) error
	Card(ctx context.Context, key string) (int64, error)
	TrimOldest(ctx context.Context, key string, n int64) error
	RevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	RevRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisMessageStore implements MessageStore on Redis sorted sets.
type RedisMessageStore struct {
	rdb *redis.Client
}

func NewRedisMessageStore(rdb *redis.Client) *RedisMessageStore {
	return &RedisMessageStore{rdb: rdb}
}

func (s *RedisMessageStore) Add(ctx context.Context, key string, score float64, member string) error {
	return s.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisMessageStore) Card(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

func (s *RedisMessageStore) TrimOldest(ctx context.Context, key string, n int64) error {
	return s.rdb.ZRemRangeByRank(ctx, key, 0, n-1).Err()
}

func (s *RedisMessageStore) RevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.rdb.ZRevRange(ctx, key, start, stop).Result()
}

func (s *RedisMessageStore) RevRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	return s.rdb.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(min, 'f', -1, 64),
		Max: strconv.FormatFloat(max, 'f', -1, 64),
	}).Result()
}

func (s *RedisMessageStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *RedisMessageStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisMessageStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.rdb.Keys(ctx, pattern).Result()
}

// RecentMessageCache keeps a bounded, time-ordered window of full messages
// per tenant. A cache outage must never block ingestion: every store error
// on the write path is logged and swallowed, and read failures come back as
// empty results.
type RecentMessageCache struct {
	store MessageStore
	cap   int64
	ttl   time.Duration
}

func NewRecentMessageCache(store MessageStore, cap int64, ttl time.Duration) *RecentMessageCache {
	if cap <= 0 {
		cap = defaultCacheCap
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RecentMessageCache{store: store, cap: cap, ttl: ttl}
}

func cacheKey(tenantID string) string {
	if tenantID == "" {
		tenantID = DefaultTenant
	}
	return cacheKeyPrefix + tenantID
}

// Record inserts the message keyed by its timestamp, evicts the oldest
// entries past the cap and refreshes the window's expiry.
func (c *RecentMessageCache) Record(ctx context.Context, tenantID string, m msg.GreenhouseMessage) {
	body, err := json.Marshal(m)
	if err != nil {
		log.Printf("cache: marshal failed for tenant %s: %v", tenantID, err)
		return
	}
	key := cacheKey(tenantID)

	if err := c.store.Add(ctx, key, float64(m.Timestamp), string(body)); err != nil {
		log.Printf("cache: record failed for %s: %v", key, err)
		return
	}
	// eviction is read-modify-write; concurrent writers may overshoot the
	// cap briefly, the next Record trims it back
	if size, err := c.store.Card(ctx, key); err == nil && size > c.cap {
		if err := c.store.TrimOldest(ctx, key, size-c.cap); err != nil {
			log.Printf("cache: trim failed for %s: %v", key, err)
		}
	}
	if err := c.store.Expire(ctx, key, c.ttl); err != nil {
		log.Printf("cache: expire failed for %s: %v", key, err)
	}
}

// Recent returns up to limit messages, newest first.
func (c *RecentMessageCache) Recent(ctx context.Context, tenantID string, limit int64) []msg.GreenhouseMessage {
	if limit <= 0 {
		return nil
	}
	raw, err := c.store.RevRange(ctx, cacheKey(tenantID), 0, limit-1)
	if err != nil {
		log.Printf("cache: recent read failed for tenant %s: %v", tenantID, err)
		return nil
	}
	return decodeMembers(raw)
}

// Range returns all messages with timestamp in [start, end], newest first.
func (c *RecentMessageCache) Range(ctx context.Context, tenantID string, start, end int64) []msg.GreenhouseMessage {
	raw, err := c.store.RevRangeByScore(ctx, cacheKey(tenantID), float64(start), float64(end))
	if err != nil {
		log.Printf("cache: range read failed for tenant %s: %v", tenantID, err)
		return nil
	}
	return decodeMembers(raw)
}

// Latest returns the newest message for the tenant, or nil.
func (c *RecentMessageCache) Latest(ctx context.Context, tenantID string) *msg.GreenhouseMessage {
	out := c.Recent(ctx, tenantID, 1)
	if len(out) == 0 {
		return nil
	}
	return &out[0]
}

// Count reports the current window size for the tenant.
func (c *RecentMessageCache) Count(ctx context.Context, tenantID string) int64 {
	n, err := c.store.Card(ctx, cacheKey(tenantID))
	if err != nil {
		log.Printf("cache: count failed for tenant %s: %v", tenantID, err)
		return 0
	}
	return n
}

// Clear removes one tenant's window. Administrative use only.
func (c *RecentMessageCache) Clear(ctx context.Context, tenantID string) error {
	return c.store.Delete(ctx, cacheKey(tenantID))
}

// ClearAll removes every tenant's window. Administrative use only.
func (c *RecentMessageCache) ClearAll(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("cache: list windows: %w", err)
	}
	return c.store.Delete(ctx, keys...)
}

func decodeMembers(raw []string) []msg.GreenhouseMessage {
	out := make([]msg.GreenhouseMessage, 0, len(raw))
	for _, r := range raw {
		var m msg.GreenhouseMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			log.Printf("cache: skipping corrupt entry: %v", err)
			continue
		}
		out = append(out, m)
	}
	return out
}
