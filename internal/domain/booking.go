package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingType string

const (
	BookingGuide   BookingType = "guide"
	BookingVehicle BookingType = "vehicle"
)

func ParseBookingType(s string) (BookingType, error) {
	switch BookingType(s) {
	case BookingGuide, BookingVehicle:
		return BookingType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown booking type %q", ErrValidation, s)
	}
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// BookingRef identifies a booking across the guide and vehicle collections.
type BookingRef struct {
	ID   uuid.UUID
	Type BookingType
}

func (r BookingRef) String() string {
	return string(r.Type) + ":" + r.ID.String()
}

// Booking is the capability shared by guide and vehicle bookings. The
// concrete variant is resolved once when the booking is loaded.
type Booking interface {
	Ref() BookingRef
	OwnerID() uuid.UUID
	ProviderID() uuid.UUID
	Total() decimal.Decimal
	Period() (start, end time.Time)
	CurrentStatus() BookingStatus
	CurrentPaymentStatus() PaymentStatus
}

// BookingRecord holds the columns common to both booking variants.
type BookingRecord struct {
	ID            uuid.UUID
	CustomerID    uuid.UUID
	StartDate     time.Time
	EndDate       time.Time
	Status        BookingStatus
	PaymentStatus PaymentStatus
	TotalPrice    decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (b BookingRecord) Period() (start, end time.Time) {
	return b.StartDate, b.EndDate
}

func (b BookingRecord) Validate() error {
	start, end := b.Period()
	if end.Before(start) {
		return fmt.Errorf("%w: booking end date before start date", ErrValidation)
	}
	if !b.TotalPrice.IsPositive() {
		return fmt.Errorf("%w: booking total price must be positive", ErrValidation)
	}
	return nil
}

type GuideBooking struct {
	BookingRecord
	GuideID uuid.UUID
}

func (b *GuideBooking) Ref() BookingRef                     { return BookingRef{ID: b.ID, Type: BookingGuide} }
func (b *GuideBooking) OwnerID() uuid.UUID                  { return b.CustomerID }
func (b *GuideBooking) ProviderID() uuid.UUID               { return b.GuideID }
func (b *GuideBooking) Total() decimal.Decimal              { return b.TotalPrice }
func (b *GuideBooking) CurrentStatus() BookingStatus        { return b.Status }
func (b *GuideBooking) CurrentPaymentStatus() PaymentStatus { return b.PaymentStatus }

type VehicleBooking struct {
	BookingRecord
	VehicleID uuid.UUID
}

func (b *VehicleBooking) Ref() BookingRef                     { return BookingRef{ID: b.ID, Type: BookingVehicle} }
func (b *VehicleBooking) OwnerID() uuid.UUID                  { return b.CustomerID }
func (b *VehicleBooking) ProviderID() uuid.UUID               { return b.VehicleID }
func (b *VehicleBooking) Total() decimal.Decimal              { return b.TotalPrice }
func (b *VehicleBooking) CurrentStatus() BookingStatus        { return b.Status }
func (b *VehicleBooking) CurrentPaymentStatus() PaymentStatus { return b.PaymentStatus }

// StatusPatch is the only mutation the payment flow applies to a booking.
type StatusPatch struct {
	Status        BookingStatus
	PaymentStatus PaymentStatus
}

var (
	PatchPaid     = StatusPatch{Status: BookingConfirmed, PaymentStatus: PaymentPaid}
	PatchRefunded = StatusPatch{Status: BookingCancelled, PaymentStatus: PaymentRefunded}
)
