package application

import (
	"context"

	"salon-assistant/internal/domain"
)

// Notifier surfaces transient notices to the user.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ domain.Notice) {}

// Alerter forwards failure details to operators. Alerts may contain raw
// backend errors.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

type NoopAlerter struct{}

func (n *NoopAlerter) Alert(_ context.Context, _ string) error {
	return nil
}
