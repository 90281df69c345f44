// Package notify delivers human-facing alerts about emitted signals and
// pipeline errors.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Sender delivers a single message to one destination.
type Sender interface {
	Send(ctx context.Context, message string) error
	Name() string
}

// Notifier fans a message out to all configured senders, filtered by event
// name. A failing sender does not block the others; delivery here is
// best-effort, the signal store and stream are the durable record.
type Notifier struct {
	senders []Sender
	events  map[string]bool // nil means all events pass
	logger  *slog.Logger
}

// NewNotifier creates a Notifier over the given senders. events lists the
// event names to deliver; an empty list delivers everything.
func NewNotifier(logger *slog.Logger, events []string, senders ...Sender) *Notifier {
	var filter map[string]bool
	if len(events) > 0 {
		filter = make(map[string]bool, len(events))
		for _, e := range events {
			filter[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  filter,
		logger:  logger.With(slog.String("component", "notify")),
	}
}

// Notify sends title and message to every sender, skipping events outside the
// configured filter. It returns the combined error from failed senders.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if n.events != nil && !n.events[event] {
		return nil
	}

	msg := title + "\n" + message
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.Warn("notification failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
