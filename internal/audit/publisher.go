package audit

import (
	"context"
	"sync"
	"time"
)

// Sink receives audit events. Implementations must be safe for concurrent
// use; request handlers emit from many goroutines.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Inbox is a buffered, non-blocking Sink that decouples request-path
// emitters from slow downstream sinks. Events are dropped when the buffer
// is full; audit delivery is best-effort and must never stall a request.
type Inbox struct {
	ch chan Event
}

func NewInbox(size int) *Inbox {
	return &Inbox{ch: make(chan Event, size)}
}

func (i *Inbox) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case i.ch <- event:
	default:
	}
	return nil
}

// Events exposes the inbox channel for the worker.
func (i *Inbox) Events() <-chan Event {
	return i.ch
}

// MemorySink keeps events in memory. Used in tests and as the default sink
// when no broker is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
