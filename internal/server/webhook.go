package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"tourguide-payments/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

const maxWebhookBody = 64 << 10

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
	eventIntentCanceled  = "payment_intent.canceled"
)

type settleFunc func(ctx context.Context, intentID string) (*domain.Transaction, error)

// stripeWebhookHandler dispatches a signed Stripe event on its type.
// Events that do not concern payment intents are acknowledged and ignored.
func (s *Server) stripeWebhookHandler(c *gin.Context) {
	event, ok := s.verifyEvent(c)
	if !ok {
		return
	}

	switch event.Type {
	case eventIntentSucceeded:
		s.settle(c, event, s.payments.ConfirmPayment)
	case eventIntentFailed, eventIntentCanceled:
		s.settle(c, event, s.payments.HandlePaymentFailure)
	default:
		s.log.Debug().Str("event_type", event.Type).Msg("webhook event ignored")
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (s *Server) confirmWebhookHandler(c *gin.Context) {
	if event, ok := s.verifyEvent(c); ok {
		s.settle(c, event, s.payments.ConfirmPayment)
	}
}

func (s *Server) failWebhookHandler(c *gin.Context) {
	if event, ok := s.verifyEvent(c); ok {
		s.settle(c, event, s.payments.HandlePaymentFailure)
	}
}

func (s *Server) verifyEvent(c *gin.Context) (stripe.Event, bool) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: read body: %v", domain.ErrValidation, err), webhookStatus)
		return stripe.Event{}, false
	}

	event, err := webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: invalid webhook signature: %v", domain.ErrValidation, err), webhookStatus)
		return stripe.Event{}, false
	}
	return event, true
}

func (s *Server) settle(c *gin.Context, event stripe.Event, fn settleFunc) {
	intentID, err := intentIDFrom(event)
	if err != nil {
		s.respondError(c, err, webhookStatus)
		return
	}

	t, err := fn(c.Request.Context(), intentID)
	if err != nil {
		s.respondError(c, err, webhookStatus)
		return
	}
	c.JSON(http.StatusOK, t)
}

func intentIDFrom(event stripe.Event) (string, error) {
	if event.Data == nil {
		return "", fmt.Errorf("%w: event %s has no data", domain.ErrValidation, event.ID)
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", fmt.Errorf("%w: decode payment intent: %v", domain.ErrValidation, err)
	}
	if pi.ID == "" {
		return "", fmt.Errorf("%w: event %s carries no payment intent id", domain.ErrValidation, event.ID)
	}
	return pi.ID, nil
}
