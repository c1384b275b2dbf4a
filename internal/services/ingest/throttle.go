package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/LeonardoBeccarini/greenhouse_pipeline/pkg/ratelimit"
)

// ThrottleStore is the shared last-accepted-timestamp store. Get reports
// (value, found); SetWithTTL records a new timestamp with an expiry.
type ThrottleStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisThrottleStore backs ThrottleStore with plain string keys.
type RedisThrottleStore struct {
	rdb *redis.Client
}

func NewRedisThrottleStore(rdb *redis.Client) *RedisThrottleStore {
	return &RedisThrottleStore{rdb: rdb}
}

func (s *RedisThrottleStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisThrottleStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// SensorThrottle gates durable writes per (greenhouse, sensor) pair: a
// reading is accepted only when at least one interval has elapsed since the
// last accepted one. The shared store is authoritative when reachable; a
// circuit breaker trips to the in-process fallback gate when it is not.
// The throttle only decimates the durable batch, never the cache or the
// broadcast path.
type SensorThrottle struct {
	store    ThrottleStore
	breaker  *gobreaker.CircuitBreaker
	fallback *ratelimit.Gate
	interval time.Duration
	enabled  bool
}

func NewSensorThrottle(store ThrottleStore, interval time.Duration, enabled bool) *SensorThrottle {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SensorThrottle{
		store: store,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "throttle-store",
			Timeout: 15 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		}),
		fallback: ratelimit.New(interval, 1000),
		interval: interval,
		enabled:  enabled,
	}
}

func throttleKey(greenhouseID int64, sensorKey string) string {
	return fmt.Sprintf("sensor:rate-limit:%d:%s", greenhouseID, sensorKey)
}

// ShouldAccept applies the minimum-interval rule and, on accept, records now
// as the new last-accepted timestamp with a TTL of twice the interval.
// Always true when the feature is disabled.
func (t *SensorThrottle) ShouldAccept(ctx context.Context, sensorKey string, greenhouseID int64, now time.Time) bool {
	if !t.enabled {
		return true
	}

	key := throttleKey(greenhouseID, sensorKey)
	if t.store == nil {
		return t.fallback.ShouldAccept(key, now)
	}

	res, err := t.breaker.Execute(func() (interface{}, error) {
		return t.sharedCheck(ctx, key, now)
	})
	if err != nil {
		// store unreachable (or breaker open): same rule, local map
		log.Printf("throttle: shared store unavailable, using local fallback: %v", err)
		return t.fallback.ShouldAccept(key, now)
	}
	return res.(bool)
}

func (t *SensorThrottle) sharedCheck(ctx context.Context, key string, now time.Time) (bool, error) {
	val, found, err := t.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if found {
		prev, perr := time.Parse(time.RFC3339Nano, val)
		if perr == nil && now.Sub(prev) < t.interval {
			return false, nil
		}
	}
	// check-then-set, not atomic: a concurrent double-accept for the same
	// sensor at the same instant is tolerated
	if err := t.store.SetWithTTL(ctx, key, now.UTC().Format(time.RFC3339Nano), 2*t.interval); err != nil {
		return false, err
	}
	return true, nil
}
