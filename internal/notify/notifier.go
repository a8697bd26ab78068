// Package notify pushes workflow milestones to operator channels. The
// workflow moves real funds across chains, so the irreversible steps
// (bridge submitted, bet placed, failure with funds in flight) fan out to
// every configured sender; an event filter lets operators mute the rest.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers one event over a single channel.
type Sender interface {
	Send(ctx context.Context, ev Event) error
	Name() string
}

// Notifier fans events out to its senders, skipping kinds outside the
// configured filter. An empty filter lets everything through.
type Notifier struct {
	senders []Sender
	allowed map[string]bool
	logger  *slog.Logger
}

// NewNotifier builds a Notifier delivering to senders. kinds lists the
// event kinds to forward; empty means all.
func NewNotifier(senders []Sender, kinds []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		allowed[strings.TrimSpace(k)] = true
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers ev to every sender whose filter admits its kind. Sender
// failures are collected so one dead webhook does not silence the others.
func (n *Notifier) Notify(ctx context.Context, ev Event) error {
	if len(n.allowed) > 0 && !n.allowed[ev.Kind] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("kind", ev.Kind))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, ev); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("kind", ev.Kind),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}
