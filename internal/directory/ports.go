// Package directory declares the contracts of the venue-directory
// collaborators the gatekeeping core is consumed by. Venue, review, and
// message persistence live in their own services; this module only needs
// the read/write shapes below.
package directory

import (
	"context"
	"errors"
	"time"
)

// ErrVenueNotFound is returned when a venue id does not resolve.
var ErrVenueNotFound = errors.New("venue not found")

// Venue is the subset of a venue record the core reads: identity plus the
// free-text weekly schedule evaluated for the open/closed badge.
type Venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
}

// Review is a user-submitted venue review.
type Review struct {
	VenueID   string    `json:"venue_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactMessage is a contact-form submission.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Suggestion is a community-suggested venue awaiting moderation.
type Suggestion struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Schedule string `json:"schedule"`
}

// Stats is the public counters block on the landing page.
type Stats struct {
	Venues  int `json:"venues"`
	Reviews int `json:"reviews"`
}

// VenueDirectory resolves venues for read paths.
type VenueDirectory interface {
	GetVenue(ctx context.Context, id string) (*Venue, error)
}

// ReviewSink accepts reviews that passed admission.
type ReviewSink interface {
	SubmitReview(ctx context.Context, review Review) error
}

// ContactSink relays contact messages to the outbound mail service.
type ContactSink interface {
	SubmitContact(ctx context.Context, message ContactMessage) error
}

// SuggestionSink accepts venue suggestions for the moderation queue.
type SuggestionSink interface {
	SubmitSuggestion(ctx context.Context, suggestion Suggestion) error
}

// StatsProvider serves the public stats block.
type StatsProvider interface {
	Stats(ctx context.Context) (*Stats, error)
}
