package models

import (
	"fmt"
	"slices"
)

// Tier classifies a caller for rate limiting purposes
type Tier string

const (
	TierGuest   Tier = "guest"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// All known tiers, lowest quota first
var Tiers = []Tier{TierGuest, TierFree, TierPremium}

func (t Tier) Valid() bool {
	return slices.Contains(Tiers, t)
}

func (t Tier) String() string {
	return string(t)
}

func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier: %q", s)
	}
	return t, nil
}

type RateLimitTier struct {
	Name            Tier `json:"name"`
	RequestsPerHour int  `json:"requests_per_hour"`
}

// Returns the built-in hourly quotas
func DefaultRateLimitTiers() []RateLimitTier {
	return []RateLimitTier{
		{Name: TierGuest, RequestsPerHour: 3},
		{Name: TierFree, RequestsPerHour: 10},
		{Name: TierPremium, RequestsPerHour: 50},
	}
}
