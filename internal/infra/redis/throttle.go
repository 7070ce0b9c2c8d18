// File: internal/infra/redis/throttle.go
package redis

import (
	"context"
	"time"
)

// Throttle stores a last-run timestamp so a periodic job can skip re-entry
// when invoked before its interval elapsed. State is advisory: losing it on
// restart only means one extra run.
type Throttle struct {
	client *Client
}

func NewThrottle(client *Client) *Throttle {
	return &Throttle{client: client}
}

// Allow reports whether the job identified by key may run now, and records
// the run when it may. Errors talking to redis fail open: a missed throttle
// is cheaper than a stalled reconciler.
func (t *Throttle) Allow(ctx context.Context, key string, interval time.Duration) bool {
	now := time.Now()
	if raw, err := t.client.Get(ctx, key); err == nil {
		if last, err := time.Parse(time.RFC3339Nano, raw); err == nil && now.Sub(last) < interval {
			return false
		}
	}
	_ = t.client.Set(ctx, key, now.Format(time.RFC3339Nano), interval*2)
	return true
}
