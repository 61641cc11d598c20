package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventIntentCreated EventType = "payment.intent_created"
	EventConfirmed     EventType = "payment.confirmed"
	EventFailed        EventType = "payment.failed"
	EventRefunded      EventType = "payment.refunded"
	EventDuplicate     EventType = "payment.duplicate_refunded"
)

// PaymentEvent is emitted after a transition has been committed.
type PaymentEvent struct {
	Type          EventType       `json:"type"`
	UserID        uuid.UUID       `json:"userId"`
	TransactionID uuid.UUID       `json:"transactionId"`
	BookingID     uuid.UUID       `json:"bookingId"`
	BookingType   BookingType     `json:"bookingType"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

func NewPaymentEvent(typ EventType, t *Transaction, at time.Time) PaymentEvent {
	return PaymentEvent{
		Type:          typ,
		UserID:        t.UserID,
		TransactionID: t.ID,
		BookingID:     t.BookingID,
		BookingType:   t.BookingType,
		Amount:        t.Amount,
		Currency:      t.Currency,
		OccurredAt:    at,
	}
}
