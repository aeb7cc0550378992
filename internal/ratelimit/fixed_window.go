package ratelimit

import (
	"context"
	"time"

	"github.com/aman-churiwal/quota-gateway/internal/models"
)

type FixedWindowLimiter struct {
	table  *QuotaTable
	policy Policy
	now    func() time.Time
}

type Option func(*FixedWindowLimiter)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(f *FixedWindowLimiter) {
		f.now = now
	}
}

func NewFixedWindow(table *QuotaTable, policy Policy, opts ...Option) *FixedWindowLimiter {
	f := &FixedWindowLimiter{
		table:  table,
		policy: policy,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *FixedWindowLimiter) Allow(ctx context.Context, identity models.Identity) (Decision, error) {
	now := f.now()
	limit := f.policy.Limit(identity.Tier)

	decision := Decision{
		Tier:      identity.Tier,
		Limit:     limit,
		DecidedAt: now,
	}

	f.table.Update(identity.Key, now, func(w *Window) {
		if w.Expired(now) {
			w.Reset(now)
		}
		decision.ResetAt = w.Start().Add(WindowLength)

		if w.Count() >= limit {
			return
		}

		w.Increment()
		decision.Allowed = true
		decision.Remaining = limit - w.Count()
	})

	return decision, nil
}

func (f *FixedWindowLimiter) Remaining(ctx context.Context, identity models.Identity) (int, error) {
	limit := f.policy.Limit(identity.Tier)

	count, start, ok := f.table.Snapshot(identity.Key)
	if !ok || f.now().Sub(start) >= WindowLength {
		return limit, nil
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}
