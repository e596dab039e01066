// Package config holds the quota bucket table for the ratelimit module.
package config

import (
	"time"

	"singluten/internal/ratelimit/models"
)

// Limit describes one quota: how many units fit in one fixed window.
// WindowMinutes >= 1440 means the window is the reference calendar day.
type Limit struct {
	Ceiling       int
	WindowMinutes int
}

// DayWindow is the per-calendar-day window marker.
const DayWindow = 24 * 60

// Config maps buckets to limits per scope. Identity buckets key on a user
// identifier; address buckets key on the resolved caller address.
type Config struct {
	Identity map[models.Bucket]Limit
	Address  map[models.Bucket]Limit

	// Retention is how long counter rows are kept before the reaper may
	// delete them. Independent of window length: a fixed multiple of the
	// longest supported window so saturated windows stay inspectable for
	// moderation before expiry.
	Retention time.Duration
}

// DefaultConfig returns the production bucket table.
func DefaultConfig() *Config {
	return &Config{
		Identity: map[models.Bucket]Limit{
			models.BucketReview:  {Ceiling: 5, WindowMinutes: DayWindow},
			models.BucketContact: {Ceiling: 3, WindowMinutes: DayWindow},
		},
		Address: map[models.Bucket]Limit{
			models.BucketContactIP:  {Ceiling: 10, WindowMinutes: 60},
			models.BucketSuggestion: {Ceiling: 5, WindowMinutes: DayWindow},
			models.BucketStats:      {Ceiling: 30, WindowMinutes: 15},
		},
		Retention: 7 * 24 * time.Hour,
	}
}

// IdentityLimit returns the limit for an identity-scoped bucket.
func (c *Config) IdentityLimit(bucket models.Bucket) (Limit, bool) {
	l, ok := c.Identity[bucket]
	return l, ok
}

// AddressLimit returns the limit for an address-scoped bucket.
func (c *Config) AddressLimit(bucket models.Bucket) (Limit, bool) {
	l, ok := c.Address[bucket]
	return l, ok
}
