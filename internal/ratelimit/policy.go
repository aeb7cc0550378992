package ratelimit

import "github.com/aman-churiwal/quota-gateway/internal/models"

// Policy maps each tier to its hourly request limit. Built once, read-only afterwards.
type Policy map[models.Tier]int

func NewPolicy(tiers []models.RateLimitTier) Policy {
	p := make(Policy, len(tiers))
	for _, tier := range tiers {
		p[tier.Name] = tier.RequestsPerHour
	}
	return p
}

func DefaultPolicy() Policy {
	return NewPolicy(models.DefaultRateLimitTiers())
}

// Unknown tiers are held to the guest limit
func (p Policy) Limit(tier models.Tier) int {
	if limit, ok := p[tier]; ok {
		return limit
	}
	return p[models.TierGuest]
}
