package payment

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-memory gateway. Intents stay pending until Settle or
// SettleRandom decides their outcome.
type MockGateway struct {
	mu       sync.RWMutex
	intents  map[string]IntentStatus
	refunds  map[string]*Refund
	failRate float64

	// CreateErr and RefundErr, when set, are returned by the next calls.
	CreateErr error
	RefundErr error

	createCalls int
	refundCalls int
	cancelCalls int
}

func NewMockGateway(failRate float64) *MockGateway {
	return &MockGateway{
		intents:  make(map[string]IntentStatus),
		refunds:  make(map[string]*Refund),
		failRate: failRate,
	}
}

func (pg *MockGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	pg.createCalls++
	if pg.CreateErr != nil {
		return nil, pg.CreateErr
	}
	if req.AmountMinor <= 0 {
		return nil, &GatewayError{Op: "create_intent", Code: "amount_too_small", Message: "amount must be positive"}
	}

	id := "pi_mock_" + uuid.NewString()
	pg.intents[id] = IntentPending
	return &Intent{ID: id, ClientSecret: id + "_secret_" + uuid.NewString()[:8], Status: IntentPending}, nil
}

func (pg *MockGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	pg.refundCalls++
	if pg.RefundErr != nil {
		return nil, pg.RefundErr
	}
	if req.IdempotencyKey != "" {
		if r, ok := pg.refunds[req.IdempotencyKey]; ok {
			return r, nil
		}
	}
	if pg.intents[req.IntentID] != IntentSucceeded {
		return nil, &GatewayError{Op: "create_refund", Code: "charge_not_refundable", Message: "intent has not succeeded"}
	}

	r := &Refund{ID: "re_mock_" + uuid.NewString(), Status: "succeeded"}
	if req.IdempotencyKey != "" {
		pg.refunds[req.IdempotencyKey] = r
	}
	return r, nil
}

func (pg *MockGateway) IntentStatus(ctx context.Context, intentID string) (IntentStatus, error) {
	pg.mu.RLock()
	defer pg.mu.RUnlock()

	status, ok := pg.intents[intentID]
	if !ok {
		return "", &GatewayError{Op: "intent_status", Code: "resource_missing", Message: "no such payment_intent"}
	}
	return status, nil
}

func (pg *MockGateway) CancelIntent(ctx context.Context, intentID string) error {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	pg.cancelCalls++
	status, ok := pg.intents[intentID]
	if !ok {
		return &GatewayError{Op: "cancel_intent", Code: "resource_missing", Message: "no such payment_intent"}
	}
	if status == IntentSucceeded {
		return &GatewayError{Op: "cancel_intent", Code: "payment_intent_unexpected_state", Message: "intent has already succeeded"}
	}
	pg.intents[intentID] = IntentFailed
	return nil
}

func (pg *MockGateway) Settle(intentID string, succeeded bool) {
	pg.mu.Lock()
	defer pg.mu.Unlock()

	if succeeded {
		pg.intents[intentID] = IntentSucceeded
	} else {
		pg.intents[intentID] = IntentFailed
	}
}

// SettleRandom settles the intent using the configured failure rate and
// reports whether it succeeded.
func (pg *MockGateway) SettleRandom(intentID string) bool {
	ok := rand.Float64() >= pg.failRate
	pg.Settle(intentID, ok)
	return ok
}

func (pg *MockGateway) CreateCalls() int {
	pg.mu.RLock()
	defer pg.mu.RUnlock()
	return pg.createCalls
}

func (pg *MockGateway) RefundCalls() int {
	pg.mu.RLock()
	defer pg.mu.RUnlock()
	return pg.refundCalls
}

func (pg *MockGateway) CancelCalls() int {
	pg.mu.RLock()
	defer pg.mu.RUnlock()
	return pg.cancelCalls
}
