package dedupe

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var seenDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "bvc_registry_dedupe_seen_duration_ms",
	Help:    "Latency of duplicate-content checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const seenHashKeyPrefix = "dedupe:hash:"

// RedisGuard is the Redis-backed Guard shared across service instances.
// The registry is append-only, so marks carry no expiry.
type RedisGuard struct {
	client *redis.Client
}

// NewRedisGuard constructs a Redis-backed duplicate-content guard.
func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

// Seen checks whether the hash was marked before.
func (g *RedisGuard) Seen(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	defer func() {
		seenDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if hash == "" {
		return false, nil
	}
	_, err := g.client.Get(ctx, seenHashKeyPrefix+hash).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Mark records the hash. Key existence is what matters; the value is a
// plain marker.
func (g *RedisGuard) Mark(ctx context.Context, hash string) error {
	if hash == "" {
		return nil
	}
	return g.client.Set(ctx, seenHashKeyPrefix+hash, "1", 0).Err()
}
