package models

import (
	"fmt"
	"time"
)

// Bucket names a logical quota: a category of throttled action with its own
// ceiling and window. The names are part of the persisted counter key, so
// renaming one silently resets its counters.
type Bucket string

const (
	// BucketReview: review creation, per identity per day.
	BucketReview Bucket = "review"
	// BucketContact: contact form submissions, per identity per day.
	BucketContact Bucket = "contact"
	// BucketContactIP: contact form submissions, per address per hour.
	BucketContactIP Bucket = "contact_ip"
	// BucketSuggestion: venue suggestion submissions, per address per day.
	BucketSuggestion Bucket = "suggestion"
	// BucketStats: public stats endpoint, per address per 15 minutes.
	BucketStats Bucket = "stats"
)

// IsValid checks if the bucket is one of the known quota names.
func (b Bucket) IsValid() bool {
	switch b {
	case BucketReview, BucketContact, BucketContactIP, BucketSuggestion, BucketStats:
		return true
	}
	return false
}

// String returns the string representation.
func (b Bucket) String() string {
	return string(b)
}

// RateCounter is the persisted record behind the limiter: one row per
// scope x bucket x window-start. The triple is unique; count only grows
// within a window's lifetime and is never decremented. Rows are written
// exclusively by the limiter engine and reaped after a fixed retention
// period independent of the window length.
type RateCounter struct {
	ScopeKey    string    `json:"scope_key"`
	BucketName  Bucket    `json:"bucket_name"`
	WindowStart time.Time `json:"window_start"`
	Count       int64     `json:"count"`
}

// RateLimitResult represents the outcome of a rate limit check.
// A denial is a normal decision outcome, not an error.
type RateLimitResult struct {
	Allowed     bool      `json:"allowed"`
	Limit       int       `json:"limit"`
	Remaining   int       `json:"remaining"`
	WindowStart time.Time `json:"window_start"`
	ResetAt     time.Time `json:"reset_at"`
	RetryAfter  int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// NewRateCounter creates a RateCounter with domain invariant validation.
func NewRateCounter(scopeKey string, bucket Bucket, windowStart time.Time, count int64) (*RateCounter, error) {
	if scopeKey == "" {
		return nil, fmt.Errorf("scope_key cannot be empty")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket_name cannot be empty")
	}
	if count < 0 {
		return nil, fmt.Errorf("count cannot be negative")
	}
	return &RateCounter{
		ScopeKey:    scopeKey,
		BucketName:  bucket,
		WindowStart: windowStart,
		Count:       count,
	}, nil
}
