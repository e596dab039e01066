package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// Justification for unit tests:
// The inbox sits on the request path; its non-blocking contract (drop, never
// stall) is what keeps throttle denials cheap under load. NewEvent's subject
// selection drives Kafka partitioning, so its priority order is pinned here.

type AuditSuite struct {
	suite.Suite
}

func TestAuditSuite(t *testing.T) {
	suite.Run(t, new(AuditSuite))
}

// === Event construction ===

func (s *AuditSuite) TestNewEvent_FieldsAndSubject() {
	event := NewEvent("rate_limit_exceeded",
		"identifier", "user-7",
		"bucket", "review",
		"count", 6,
	)

	s.NotEmpty(event.ID)
	s.Equal("rate_limit_exceeded", event.Action)
	s.Equal("user-7", event.Subject)
	s.Equal("review", event.Fields["bucket"])
	s.Equal("6", event.Fields["count"])
	s.WithinDuration(time.Now(), event.Timestamp, time.Second)
}

func (s *AuditSuite) TestNewEvent_SubjectPriority() {
	event := NewEvent("rate_limit_exceeded",
		"address", "203.0.113.9",
		"identifier", "user-7",
	)

	// identifier outranks address regardless of attribute order.
	s.Equal("user-7", event.Subject)
}

func (s *AuditSuite) TestNewEvent_NoSubject() {
	event := NewEvent("counters_purged", "stores", 2)

	s.Empty(event.Subject)
}

func (s *AuditSuite) TestNewEvent_OddTrailingKeyDropped() {
	event := NewEvent("rate_limit_exceeded", "bucket", "review", "dangling")

	s.Equal(map[string]string{"bucket": "review"}, event.Fields)
}

// === Inbox ===

func (s *AuditSuite) TestInbox_DeliversToWorker() {
	inbox := NewInbox(4)
	sink := NewMemorySink()
	worker := NewWorker(sink, inbox.Events(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	s.Require().NoError(inbox.Emit(ctx, NewEvent("rate_limit_exceeded", "identifier", "user-1")))

	s.Eventually(func() bool {
		return len(sink.Events()) == 1
	}, time.Second, 10*time.Millisecond)
	s.Equal("user-1", sink.Events()[0].Subject)

	cancel()
	<-done
}

func (s *AuditSuite) TestInbox_DropsWhenFull() {
	inbox := NewInbox(2)
	ctx := context.Background()

	// No worker draining; the third emit must not block.
	for i := 0; i < 3; i++ {
		s.Require().NoError(inbox.Emit(ctx, NewEvent("rate_limit_exceeded")))
	}

	s.Len(inbox.Events(), 2)
}

func (s *AuditSuite) TestInbox_StampsMissingTimestamp() {
	inbox := NewInbox(1)
	s.Require().NoError(inbox.Emit(context.Background(), Event{Action: "rate_limit_exceeded"}))

	event := <-inbox.Events()
	s.False(event.Timestamp.IsZero())
}

// === Worker ===

func (s *AuditSuite) TestWorker_SinkFailureDoesNotStop() {
	inbox := NewInbox(4)
	failing := &failingSink{err: errors.New("broker down")}
	worker := NewWorker(failing, inbox.Events(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	for i := 0; i < 3; i++ {
		s.Require().NoError(inbox.Emit(ctx, NewEvent("rate_limit_exceeded")))
	}

	s.Eventually(func() bool {
		return failing.calls() == 3
	}, time.Second, 10*time.Millisecond)
}

type failingSink struct {
	err error
	n   atomic.Int64
}

func (f *failingSink) Emit(context.Context, Event) error {
	f.n.Add(1)
	return f.err
}

func (f *failingSink) calls() int { return int(f.n.Load()) }
