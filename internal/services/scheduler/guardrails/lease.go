// Package guardrails holds the cross replica safety helpers for the scheduler
package guardrails

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLeaseHeld signals another replica is running a cycle already
var ErrLeaseHeld = errors.New("scheduler: cycle lease already held")

// Lease runs do while holding the cycle lease, or returns ErrLeaseHeld without running it
type Lease func(ctx context.Context, do func(context.Context) error) error

// Leaser is the slice of the redis client the lease needs
type Leaser interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// release deletes the key only while it still carries our token, so a lease that
// expired and was taken by another replica is left alone
const release = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`

// NoLease runs do directly; used when redis is not configured
func NoLease() Lease {
	return func(ctx context.Context, do func(context.Context) error) error { return do(ctx) }
}

// MakeRedisLease returns a Lease backed by SET NX PX plus a compare-and-delete release.
// ttl must outlast a cycle; an expired lease lets a second replica start early
func MakeRedisLease(c Leaser, key string, ttl time.Duration) Lease {
	return func(ctx context.Context, do func(context.Context) error) error {
		token := uuid.NewString()
		ok, err := c.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrLeaseHeld
		}
		defer func() {
			// release even when the caller's ctx is already done
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = c.Eval(rctx, release, []string{key}, token).Err()
		}()
		return do(ctx)
	}
}
