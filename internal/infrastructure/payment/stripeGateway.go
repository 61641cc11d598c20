package payment

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

type StripeOptions struct {
	SecretKey string
	// Backends overrides the Stripe API endpoints, e.g. for tests.
	Backends *stripe.Backends
}

type stripeGateway struct {
	sc *client.API
}

func NewStripeGateway(opts StripeOptions) PaymentGateway {
	sc := &client.API{}
	sc.Init(opts.SecretKey, opts.Backends)
	return &stripeGateway{sc: sc}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(req.Currency),
		Description: stripe.String(req.Description),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripeError("create_intent", err)
	}

	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: intentStatus(pi)}, nil
}

func (g *stripeGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := g.sc.Refunds.New(params)
	if err != nil {
		return nil, wrapStripeError("create_refund", err)
	}

	return &Refund{ID: r.ID, Status: string(r.Status)}, nil
}

func (g *stripeGateway) IntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.sc.PaymentIntents.Get(intentID, params)
	if err != nil {
		return "", wrapStripeError("intent_status", err)
	}
	return intentStatus(pi), nil
}

func (g *stripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := g.sc.PaymentIntents.Cancel(intentID, params); err != nil {
		return wrapStripeError("cancel_intent", err)
	}
	return nil
}

func intentStatus(pi *stripe.PaymentIntent) IntentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return IntentFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// A declined attempt sends the intent back to requires_payment_method.
		if pi.LastPaymentError != nil {
			return IntentFailed
		}
		return IntentPending
	default:
		return IntentPending
	}
}

func wrapStripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &GatewayError{
			Op:         op,
			Code:       string(se.Code),
			Message:    se.Msg,
			HTTPStatus: se.HTTPStatusCode,
		}
	}
	return &GatewayError{Op: op, Message: err.Error()}
}
