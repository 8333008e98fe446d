package reconcile

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultDedupTTL = 24 * time.Hour

// RedisGuard records settled transaction references so a redelivered
// webhook is answered without touching the database.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisGuard{client: client, ttl: ttl}
}

func guardKey(ref string) string {
	return "reconcile:txn:" + ref
}

func (g *RedisGuard) Seen(ctx context.Context, ref string) (bool, error) {
	n, err := g.client.Exists(ctx, guardKey(ref)).Result()
	return n > 0, err
}

func (g *RedisGuard) Mark(ctx context.Context, ref string) error {
	return g.client.Set(ctx, guardKey(ref), "1", g.ttl).Err()
}
