package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tourguide-payments/internal/domain"

	"github.com/google/uuid"
)

type BookingRepo interface {
	FindGuideBooking(ctx context.Context, id uuid.UUID) (*domain.GuideBooking, error)
	FindVehicleBooking(ctx context.Context, id uuid.UUID) (*domain.VehicleBooking, error)
	// Find resolves the booking variant named by ref.
	Find(ctx context.Context, ref domain.BookingRef) (domain.Booking, error)
	UpdateStatus(ctx context.Context, tx DBTX, ref domain.BookingRef, patch domain.StatusPatch) error
	Create(ctx context.Context, tx DBTX, booking domain.Booking) error
}

type bookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) BookingRepo {
	return &bookingRepo{db: db}
}

func bookingTable(t domain.BookingType) (string, error) {
	switch t {
	case domain.BookingGuide:
		return "guide_bookings", nil
	case domain.BookingVehicle:
		return "vehicle_bookings", nil
	default:
		return "", fmt.Errorf("%w: unknown booking type %q", domain.ErrValidation, t)
	}
}

func scanBookingRecord(row rowScanner, provider *uuid.UUID) (domain.BookingRecord, error) {
	var b domain.BookingRecord
	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		provider,
		&b.StartDate,
		&b.EndDate,
		&b.Status,
		&b.PaymentStatus,
		&b.TotalPrice,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (r *bookingRepo) FindGuideBooking(ctx context.Context, id uuid.UUID) (*domain.GuideBooking, error) {
	query := `
		SELECT id, customer_id, guide_id, start_date, end_date, status, payment_status, total_price, created_at, updated_at
		FROM guide_bookings
		WHERE id = $1
	`
	var guideID uuid.UUID
	rec, err := scanBookingRecord(r.db.QueryRowContext(ctx, query, id), &guideID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: guide booking %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &domain.GuideBooking{BookingRecord: rec, GuideID: guideID}, nil
}

func (r *bookingRepo) FindVehicleBooking(ctx context.Context, id uuid.UUID) (*domain.VehicleBooking, error) {
	query := `
		SELECT id, customer_id, vehicle_id, start_date, end_date, status, payment_status, total_price, created_at, updated_at
		FROM vehicle_bookings
		WHERE id = $1
	`
	var vehicleID uuid.UUID
	rec, err := scanBookingRecord(r.db.QueryRowContext(ctx, query, id), &vehicleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vehicle booking %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &domain.VehicleBooking{BookingRecord: rec, VehicleID: vehicleID}, nil
}

func (r *bookingRepo) Find(ctx context.Context, ref domain.BookingRef) (domain.Booking, error) {
	switch ref.Type {
	case domain.BookingGuide:
		b, err := r.FindGuideBooking(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return b, nil
	case domain.BookingVehicle:
		b, err := r.FindVehicleBooking(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown booking type %q", domain.ErrValidation, ref.Type)
	}
}

func (r *bookingRepo) UpdateStatus(ctx context.Context, tx DBTX, ref domain.BookingRef, patch domain.StatusPatch) error {
	table, err := bookingTable(ref.Type)
	if err != nil {
		return err
	}

	query := `UPDATE ` + table + ` SET status = $1, payment_status = $2, updated_at = now() WHERE id = $3`
	res, err := tx.ExecContext(ctx, query, patch.Status, patch.PaymentStatus, ref.ID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: booking %s", domain.ErrNotFound, ref)
	}
	return nil
}

func (r *bookingRepo) Create(ctx context.Context, tx DBTX, booking domain.Booking) error {
	var (
		rec      domain.BookingRecord
		column   string
		provider uuid.UUID
	)
	switch b := booking.(type) {
	case *domain.GuideBooking:
		rec, column, provider = b.BookingRecord, "guide_id", b.GuideID
	case *domain.VehicleBooking:
		rec, column, provider = b.BookingRecord, "vehicle_id", b.VehicleID
	default:
		return fmt.Errorf("%w: unsupported booking %T", domain.ErrValidation, booking)
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	table, err := bookingTable(booking.Ref().Type)
	if err != nil {
		return err
	}

	query := `INSERT INTO ` + table + ` (id, customer_id, ` + column + `, start_date, end_date, status, payment_status, total_price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err = tx.ExecContext(ctx, query,
		rec.ID, rec.CustomerID, provider, rec.StartDate, rec.EndDate,
		rec.Status, rec.PaymentStatus, rec.TotalPrice, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}
