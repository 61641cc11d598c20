package notify

import (
	"context"
	"errors"

	"tourguide-payments/internal/domain"
)

// Notifier delivers committed payment events to interested parties.
type Notifier interface {
	Notify(ctx context.Context, event domain.PaymentEvent) error
}

type Nop struct{}

func (Nop) Notify(context.Context, domain.PaymentEvent) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event domain.PaymentEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, event domain.PaymentEvent) error

func (f Func) Notify(ctx context.Context, event domain.PaymentEvent) error {
	return f(ctx, event)
}
