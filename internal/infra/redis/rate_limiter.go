package redis

import (
	"context"
	"fmt"
	"time"
)

// CheckoutLimiter caps how often one user may hit a checkout route
// (create-order, verify, consume) within a fixed window. Counters live in
// Redis so every API replica sees the same budget.
type CheckoutLimiter struct {
	client RedisClient
}

func NewCheckoutLimiter(client RedisClient) *CheckoutLimiter {
	return &CheckoutLimiter{client: client}
}

// Allow counts one attempt against key and reports whether it fits in limit.
// The window starts with the first attempt; a counter whose TTL could not be
// set is dropped so it cannot block the user forever.
func (l *CheckoutLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, fmt.Errorf("checkout limiter: invalid limit %d per %s", limit, window)
	}
	attempts, err := l.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if attempts == 1 {
		if err := l.client.Expire(ctx, key, window); err != nil {
			_ = l.client.Del(ctx, key)
			return false, err
		}
	}
	return attempts <= int64(limit), nil
}

// CheckoutKey scopes a counter to one user on one route.
func CheckoutKey(userID, route string) string {
	return fmt.Sprintf("prepvio:checkout_limit:%s:%s", route, userID)
}
