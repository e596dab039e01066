package directory

import (
	"context"
	"sync"
)

// MemoryDirectory implements every directory port in memory. It backs unit
// tests and local development; production wires the real services instead.
type MemoryDirectory struct {
	mu          sync.RWMutex
	venues      map[string]Venue
	reviews     []Review
	contacts    []ContactMessage
	suggestions []Suggestion
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{venues: make(map[string]Venue)}
}

// AddVenue seeds a venue.
func (d *MemoryDirectory) AddVenue(venue Venue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.venues[venue.ID] = venue
}

func (d *MemoryDirectory) GetVenue(_ context.Context, id string) (*Venue, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	venue, ok := d.venues[id]
	if !ok {
		return nil, ErrVenueNotFound
	}
	return &venue, nil
}

func (d *MemoryDirectory) SubmitReview(_ context.Context, review Review) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reviews = append(d.reviews, review)
	return nil
}

func (d *MemoryDirectory) SubmitContact(_ context.Context, message ContactMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts = append(d.contacts, message)
	return nil
}

func (d *MemoryDirectory) SubmitSuggestion(_ context.Context, suggestion Suggestion) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suggestions = append(d.suggestions, suggestion)
	return nil
}

func (d *MemoryDirectory) Stats(context.Context) (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Stats{Venues: len(d.venues), Reviews: len(d.reviews)}, nil
}

// Reviews returns a copy of the accepted reviews.
func (d *MemoryDirectory) Reviews() []Review {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Review, len(d.reviews))
	copy(out, d.reviews)
	return out
}

// Contacts returns a copy of the accepted contact messages.
func (d *MemoryDirectory) Contacts() []ContactMessage {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]ContactMessage, len(d.contacts))
	copy(out, d.contacts)
	return out
}

// Suggestions returns a copy of the accepted suggestions.
func (d *MemoryDirectory) Suggestions() []Suggestion {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Suggestion, len(d.suggestions))
	copy(out, d.suggestions)
	return out
}
