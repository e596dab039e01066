package audit

import (
	"context"
	"log/slog"
)

// Worker drains an inbox and forwards events to a sink. It keeps slow
// sinks (Kafka) off the request path; delivery failures are logged, not
// propagated, since audit is best-effort.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.sink.Emit(ctx, event); err != nil && w.logger != nil {
				w.logger.WarnContext(ctx, "failed to deliver audit event",
					"action", event.Action, "error", err)
			}
		}
	}
}
