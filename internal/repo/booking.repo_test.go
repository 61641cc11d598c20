package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"tourguide-payments/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingColumns = []string{
	"id", "customer_id", "provider_id", "start_date", "end_date",
	"status", "payment_status", "total_price", "created_at", "updated_at",
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestFindGuideBooking(t *testing.T) {
	db, mock := newMock(t)
	r := NewBookingRepo(db)

	id, customer, guide := uuid.New(), uuid.New(), uuid.New()
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM guide_bookings WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(bookingColumns).AddRow(
			id.String(), customer.String(), guide.String(), start, start.AddDate(0, 0, 1),
			"pending", "unpaid", "100.00", start, start,
		))

	b, err := r.FindGuideBooking(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingRef{ID: id, Type: domain.BookingGuide}, b.Ref())
	assert.Equal(t, customer, b.OwnerID())
	assert.Equal(t, guide, b.ProviderID())
	assert.True(t, b.Total().Equal(decimal.RequireFromString("100")))
	assert.Equal(t, domain.BookingPending, b.CurrentStatus())
	assert.Equal(t, domain.PaymentUnpaid, b.CurrentPaymentStatus())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindVehicleBookingNotFound(t *testing.T) {
	db, mock := newMock(t)
	r := NewBookingRepo(db)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .* FROM vehicle_bookings WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(bookingColumns))

	b, err := r.Find(context.Background(), domain.BookingRef{ID: id, Type: domain.BookingVehicle})
	assert.Nil(t, b)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUnknownType(t *testing.T) {
	db, _ := newMock(t)
	r := NewBookingRepo(db)

	_, err := r.Find(context.Background(), domain.BookingRef{ID: uuid.New(), Type: "boat"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestUpdateBookingStatus(t *testing.T) {
	db, mock := newMock(t)
	r := NewBookingRepo(db)
	ref := domain.BookingRef{ID: uuid.New(), Type: domain.BookingVehicle}

	mock.ExpectExec(`UPDATE vehicle_bookings SET status = \$1, payment_status = \$2`).
		WithArgs("confirmed", "paid", ref.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.UpdateStatus(context.Background(), db, ref, domain.PatchPaid))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatusMissing(t *testing.T) {
	db, mock := newMock(t)
	r := NewBookingRepo(db)
	ref := domain.BookingRef{ID: uuid.New(), Type: domain.BookingGuide}

	mock.ExpectExec(`UPDATE guide_bookings`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := r.UpdateStatus(context.Background(), db, ref, domain.PatchRefunded)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateBookingRejectsInvalidPeriod(t *testing.T) {
	db, _ := newMock(t)
	r := NewBookingRepo(db)

	start := time.Now()
	b := &domain.GuideBooking{BookingRecord: domain.BookingRecord{
		ID: uuid.New(), StartDate: start, EndDate: start.Add(-time.Hour), TotalPrice: decimal.NewFromInt(5),
	}}

	assert.ErrorIs(t, r.Create(context.Background(), db, b), domain.ErrValidation)
}

func TestCreateVehicleBooking(t *testing.T) {
	db, mock := newMock(t)
	r := NewBookingRepo(db)

	start := time.Now()
	b := &domain.VehicleBooking{
		BookingRecord: domain.BookingRecord{
			ID: uuid.New(), CustomerID: uuid.New(), StartDate: start, EndDate: start,
			Status: domain.BookingPending, PaymentStatus: domain.PaymentUnpaid,
			TotalPrice: decimal.RequireFromString("80.25"), CreatedAt: start, UpdatedAt: start,
		},
		VehicleID: uuid.New(),
	}

	mock.ExpectExec(`INSERT INTO vehicle_bookings \(id, customer_id, vehicle_id`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Create(context.Background(), db, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}
