package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// DuplicateChargeReason is recorded on a transaction whose successful charge
// was refunded because another transaction had already paid the booking.
const DuplicateChargeReason = "duplicate charge"

// Transaction is one payment attempt against a single booking.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"userId"`
	BookingID       uuid.UUID         `json:"bookingId"`
	BookingType     BookingType       `json:"bookingType"`
	PaymentIntentID string            `json:"paymentIntentId"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Status          TransactionStatus `json:"status"`
	Refunded        bool              `json:"refunded"`
	RefundID        string            `json:"refundId,omitempty"`
	RefundReason    string            `json:"refundReason,omitempty"`
	RefundedAt      *time.Time        `json:"refundedAt,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func NewPendingTransaction(userID uuid.UUID, ref BookingRef, intentID string, amount decimal.Decimal, currency string, now time.Time) *Transaction {
	return &Transaction{
		ID:              uuid.New(),
		UserID:          userID,
		BookingID:       ref.ID,
		BookingType:     ref.Type,
		PaymentIntentID: intentID,
		Amount:          amount,
		Currency:        currency,
		Status:          TransactionPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (t *Transaction) Booking() BookingRef {
	return BookingRef{ID: t.BookingID, Type: t.BookingType}
}

func (t *Transaction) CanComplete() bool {
	return t.Status != TransactionCompleted
}

func (t *Transaction) CanRefund() bool {
	return t.Status == TransactionCompleted && !t.Refunded
}

// Complete moves a pending or failed attempt to completed. A completed
// transaction is never completed again.
func (t *Transaction) Complete(at time.Time) error {
	if !t.CanComplete() {
		return fmt.Errorf("%w: transaction %s already completed", ErrInvalidState, t.ID)
	}
	t.Status = TransactionCompleted
	t.CompletedAt = &at
	t.UpdatedAt = at
	return nil
}

func (t *Transaction) Fail(at time.Time) error {
	if t.Status == TransactionCompleted {
		return fmt.Errorf("%w: completed transaction %s cannot fail", ErrInvalidState, t.ID)
	}
	t.Status = TransactionFailed
	t.UpdatedAt = at
	return nil
}

// CheckRefundable applies the refund guards. A caller who does not own the
// transaction is rejected before anything about its state is revealed.
func (t *Transaction) CheckRefundable(userID uuid.UUID) error {
	if t.UserID != userID {
		return fmt.Errorf("%w: transaction %s belongs to another user", ErrUnauthorized, t.ID)
	}
	if t.CanRefund() {
		return nil
	}
	if t.Status != TransactionCompleted {
		return fmt.Errorf("%w: only completed transactions may be refunded", ErrInvalidState)
	}
	return fmt.Errorf("%w: transaction %s", ErrAlreadyRefunded, t.ID)
}

func (t *Transaction) MarkRefunded(refundID, reason string, at time.Time) error {
	if err := t.CheckRefundable(t.UserID); err != nil {
		return err
	}
	t.Refunded = true
	t.RefundID = refundID
	t.RefundReason = reason
	t.RefundedAt = &at
	t.UpdatedAt = at
	return nil
}

// ReleaseDuplicate fails a pending transaction whose charge went through
// after its booking was already paid, keeping the id of the gateway refund
// that returned the money. Refunded stays false: that flag is reserved for
// refunds of completed payments.
func (t *Transaction) ReleaseDuplicate(refundID string, at time.Time) error {
	if t.Status != TransactionPending {
		return fmt.Errorf("%w: only pending transactions can be released as duplicates", ErrInvalidState)
	}
	t.Status = TransactionFailed
	t.RefundID = refundID
	t.RefundReason = DuplicateChargeReason
	t.RefundedAt = &at
	t.UpdatedAt = at
	return nil
}
