// Package ratelimit provides a redis-backed token bucket and the invite
// limiter built on it.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tidehub/workdesk/internal/config"
	"github.com/tidehub/workdesk/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// tokenBucketScript refills KEYS[1] at ARGV[1] tokens/second up to ARGV[2]
// and takes ARGV[4] tokens when available. Runs atomically inside redis.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(bucket[1])
local ts = tonumber(bucket[2])
if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= requested then
  tokens = tokens - requested
  allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', key, math.max(60, math.ceil(burst / rate) * 2))
return allowed
`)

// TokenBucket rate limits arbitrary keys against a shared redis instance.
type TokenBucket struct {
	client *redis.Client
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	return &TokenBucket{client: client}
}

// Allow takes one token from the bucket behind key. Rate is tokens per
// second, burst the bucket capacity.
func (b *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (bool, error) {
	result, err := tokenBucketScript.Run(ctx, b.client,
		[]string{key},
		rate, burst, float64(time.Now().UnixMilli())/1000.0, 1,
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// InviteLimiter throttles invitation creation per organization using the
// rates from the invite policy. Without a configured redis it admits
// everything.
type InviteLimiter struct {
	bucket *TokenBucket
	policy *config.InvitePolicyHolder
}

// NewInviteLimiter wires the limiter. The redis client is created lazily
// from config; an empty REDIS_ADDR disables limiting.
func NewInviteLimiter(lc fx.Lifecycle, cfg config.Config, policy *config.InvitePolicyHolder) *InviteLimiter {
	limiter := &InviteLimiter{policy: policy}
	if cfg.RedisAddr == "" {
		return limiter
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	limiter.bucket = NewTokenBucket(client)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return limiter
}

// Allow reports whether the organization may issue another invitation now.
// Redis trouble fails open: a broken limiter must not block invites.
func (l *InviteLimiter) Allow(ctx context.Context, orgID string) bool {
	if l == nil || l.bucket == nil {
		return true
	}

	policy := l.policy.Get()
	if policy.OrgRate <= 0 || policy.OrgBurst <= 0 {
		return true
	}

	allowed, err := l.bucket.Allow(ctx, "workdesk:invites:"+orgID, policy.OrgRate, policy.OrgBurst)
	if err != nil {
		logger.FromContext(ctx).Warn("invite rate limiter unavailable",
			zap.String("org_id", orgID),
			zap.Error(err),
		)
		return true
	}
	return allowed
}
