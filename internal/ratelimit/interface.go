// Package ratelimit implements per-identity hourly quotas using fixed windows.
//
// A window opens on an identity's first request and admits up to the tier's
// limit until an hour has passed since it opened; the next request after that
// starts a fresh window. Requests straddling a window boundary can therefore
// see up to twice the limit in a short span.
package ratelimit

import (
	"context"
	"time"

	"github.com/aman-churiwal/quota-gateway/internal/models"
)

type Limiter interface {
	// Allow consumes one request from the identity's quota if any is left
	Allow(ctx context.Context, identity models.Identity) (Decision, error)

	// Remaining reports the quota left without consuming or resetting anything
	Remaining(ctx context.Context, identity models.Identity) (int, error)
}

// Decision is the outcome of a single admission check
type Decision struct {
	Allowed   bool
	Tier      models.Tier
	Limit     int
	Remaining int
	ResetAt   time.Time

	// DecidedAt is the limiter's clock reading when the decision was made
	DecidedAt time.Time
}

// RetryAfter returns how long a rejected caller has to wait, as seen from now,
// for the window to reset
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
