// Package quota implements check_and_consume_quota (spec §4.1): an atomic
// daily ceiling on accepted queries per workspace, backed by Redis so the
// counter survives process restarts and is shared across API instances.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/askaq/aaq/internal/apperr"
)

// consumeScript atomically checks-then-increments the daily counter. It
// reads the current value, and if adding cost would exceed limit, returns
// -1 without mutating state; otherwise it increments by cost, sets the TTL
// on first write, and returns the new value.
const consumeScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local cost = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if limit >= 0 and current + cost > limit then
  return -1
end
local new = redis.call("INCRBY", KEYS[1], cost)
if new == cost then
  redis.call("EXPIRE", KEYS[1], ARGV[3])
end
return new
`

// Limiter enforces per-workspace daily API quotas against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a quota Limiter.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Check atomically consumes cost units of a workspace's daily quota. A nil
// dailyQuota means unlimited and always succeeds. Returns apperr with
// Kind=QuotaExceeded when the consumption would exceed the configured
// ceiling; the counter is left untouched in that case.
func (l *Limiter) Check(ctx context.Context, workspaceID int64, dailyQuota *int, cost int) error {
	limit := int64(-1)
	if dailyQuota != nil {
		limit = int64(*dailyQuota)
	}

	key := counterKey(workspaceID, time.Now().UTC())
	// A 48h TTL comfortably outlives the UTC day the key is scoped to, in
	// case of clock skew near midnight, while still reclaiming old keys.
	const ttlSeconds = 48 * 60 * 60

	result, err := l.client.Eval(ctx, consumeScript, []string{key}, cost, limit, ttlSeconds).Int64()
	if err != nil {
		return fmt.Errorf("consuming quota: %w", err)
	}
	if result < 0 {
		return apperr.New(apperr.QuotaExceeded, "quota_exceeded", "workspace daily API quota exceeded")
	}
	return nil
}

// Count returns the current counter value for a workspace's current UTC
// day, without mutating it.
func (l *Limiter) Count(ctx context.Context, workspaceID int64) (int64, error) {
	key := counterKey(workspaceID, time.Now().UTC())
	n, err := l.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("reading quota counter: %w", err)
	}
	return n, nil
}

func counterKey(workspaceID int64, at time.Time) string {
	return fmt.Sprintf("quota:%d:%s", workspaceID, at.Format("2006-01-02"))
}
