// Package notify delivers booking and review notifications. Delivery is best
// effort: callers log failures and never roll back the triggering change.
package notify

import (
	"context"
	"log/slog"
)

// Kind selects the message template.
type Kind string

const (
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCancelled Kind = "booking_cancelled"
	KindReviewCreated    Kind = "review_created"
)

// Data is the template payload for a notification.
type Data map[string]any

// Notifier sends a notification of kind to the recipient address.
type Notifier interface {
	Notify(ctx context.Context, to string, kind Kind, data Data) error
}

// LogNotifier renders messages and writes them to the log instead of
// delivering them. Used when no mail provider is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a Notifier that only logs.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With(slog.String("component", "notify"))}
}

func (n *LogNotifier) Notify(ctx context.Context, to string, kind Kind, data Data) error {
	msg, err := Render(kind, data)
	if err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("to", to),
		slog.String("kind", string(kind)),
		slog.String("subject", msg.Subject),
	)
	return nil
}
