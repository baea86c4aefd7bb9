package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const claimTTL = time.Minute

// IdempotencyGuard claims idempotency keys in Redis so concurrent retries of
// the same request are processed once.
// Key format: idem:<scope>:<key>
type IdempotencyGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyGuard creates an IdempotencyGuard wrapping the given Redis client.
// Claims expire after ttl so a crashed holder never blocks a key forever.
func NewIdempotencyGuard(client *redis.Client, ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = claimTTL
	}
	return &IdempotencyGuard{client: client, ttl: ttl}
}

// Claim reports whether the caller now owns the key.
func (g *IdempotencyGuard) Claim(ctx context.Context, scope, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.key(scope, key), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim: %w", err)
	}
	return ok, nil
}

// Release drops a claim taken with Claim.
func (g *IdempotencyGuard) Release(ctx context.Context, scope, key string) error {
	if err := g.client.Del(ctx, g.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (g *IdempotencyGuard) key(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}
