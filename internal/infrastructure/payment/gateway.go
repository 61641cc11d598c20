package payment

import (
	"context"
	"fmt"

	"tourguide-payments/internal/domain"
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentSucceeded IntentStatus = "succeeded"
	IntentFailed    IntentStatus = "failed"
)

type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       IntentStatus
}

type RefundRequest struct {
	IntentID string
	Reason   string
	// IdempotencyKey makes retried refunds of the same transaction collapse
	// into a single gateway refund.
	IdempotencyKey string
}

type Refund struct {
	ID     string
	Status string
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	IntentStatus(ctx context.Context, intentID string) (IntentStatus, error)
	// CancelIntent abandons an intent that has not succeeded. Cancelling an
	// intent that already failed is not an error.
	CancelIntent(ctx context.Context, intentID string) error
}

// GatewayError is a failure reported by the payment processor. Message may
// contain processor details and is not meant for end users.
type GatewayError struct {
	Op         string
	Code       string
	Message    string
	HTTPStatus int
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return domain.ErrGateway
}
