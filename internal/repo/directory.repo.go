package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tourguide-payments/internal/domain"

	"github.com/google/uuid"
)

// DirectoryRepo resolves display names of the parties behind a booking.
type DirectoryRepo interface {
	GuideName(ctx context.Context, guideID uuid.UUID) (string, error)
	VehicleName(ctx context.Context, vehicleID uuid.UUID) (string, error)
	DisplayName(ctx context.Context, booking domain.Booking) (string, error)

	CreateUser(ctx context.Context, tx DBTX, id uuid.UUID, name, email string) error
	CreateGuide(ctx context.Context, tx DBTX, id, userID uuid.UUID) error
	CreateVehicle(ctx context.Context, tx DBTX, id, ownerID uuid.UUID, name string) error
}

type directoryRepo struct {
	db *sql.DB
}

func NewDirectoryRepo(db *sql.DB) DirectoryRepo {
	return &directoryRepo{db: db}
}

func (r *directoryRepo) GuideName(ctx context.Context, guideID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		`SELECT u.name FROM guides g JOIN users u ON u.id = g.user_id WHERE g.id = $1`, guideID,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: guide %s", domain.ErrNotFound, guideID)
	}
	return name, err
}

func (r *directoryRepo) VehicleName(ctx context.Context, vehicleID uuid.UUID) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM vehicles WHERE id = $1`, vehicleID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: vehicle %s", domain.ErrNotFound, vehicleID)
	}
	return name, err
}

func (r *directoryRepo) DisplayName(ctx context.Context, booking domain.Booking) (string, error) {
	switch booking.Ref().Type {
	case domain.BookingGuide:
		return r.GuideName(ctx, booking.ProviderID())
	case domain.BookingVehicle:
		return r.VehicleName(ctx, booking.ProviderID())
	default:
		return "", fmt.Errorf("%w: unknown booking type %q", domain.ErrValidation, booking.Ref().Type)
	}
}

func (r *directoryRepo) CreateUser(ctx context.Context, tx DBTX, id uuid.UUID, name, email string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO users (id, name, email) VALUES ($1, $2, $3)`, id, name, email)
	return err
}

func (r *directoryRepo) CreateGuide(ctx context.Context, tx DBTX, id, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO guides (id, user_id) VALUES ($1, $2)`, id, userID)
	return err
}

func (r *directoryRepo) CreateVehicle(ctx context.Context, tx DBTX, id, ownerID uuid.UUID, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO vehicles (id, owner_id, name) VALUES ($1, $2, $3)`, id, ownerID, name)
	return err
}
