package payment

import (
	"context"
	"strconv"
	"time"

	"tourguide-payments/internal/metrics"
)

type instrumented struct {
	next PaymentGateway
	m    *metrics.Metrics
}

// WithMetrics records the latency of every gateway call.
func WithMetrics(next PaymentGateway, m *metrics.Metrics) PaymentGateway {
	if m == nil {
		return next
	}
	return &instrumented{next: next, m: m}
}

func (g *instrumented) observe(call string, start time.Time, err error) {
	g.m.GatewayDuration.
		WithLabelValues(call, strconv.FormatBool(err == nil)).
		Observe(time.Since(start).Seconds())
}

func (g *instrumented) CreateIntent(ctx context.Context, req IntentRequest) (intent *Intent, err error) {
	defer func(start time.Time) { g.observe("create_intent", start, err) }(time.Now())
	return g.next.CreateIntent(ctx, req)
}

func (g *instrumented) CreateRefund(ctx context.Context, req RefundRequest) (refund *Refund, err error) {
	defer func(start time.Time) { g.observe("create_refund", start, err) }(time.Now())
	return g.next.CreateRefund(ctx, req)
}

func (g *instrumented) IntentStatus(ctx context.Context, intentID string) (status IntentStatus, err error) {
	defer func(start time.Time) { g.observe("intent_status", start, err) }(time.Now())
	return g.next.IntentStatus(ctx, intentID)
}

func (g *instrumented) CancelIntent(ctx context.Context, intentID string) (err error) {
	defer func(start time.Time) { g.observe("cancel_intent", start, err) }(time.Now())
	return g.next.CancelIntent(ctx, intentID)
}
