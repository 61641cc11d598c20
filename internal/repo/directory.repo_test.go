package repo

import (
	"context"
	"testing"

	"tourguide-payments/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayNameGuide(t *testing.T) {
	db, mock := newMock(t)
	r := NewDirectoryRepo(db)
	b := &domain.GuideBooking{GuideID: uuid.New()}

	mock.ExpectQuery(`SELECT u.name FROM guides g JOIN users u`).
		WithArgs(b.GuideID).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Amina"))

	name, err := r.DisplayName(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "Amina", name)
}

func TestDisplayNameVehicleMissing(t *testing.T) {
	db, mock := newMock(t)
	r := NewDirectoryRepo(db)
	b := &domain.VehicleBooking{VehicleID: uuid.New()}

	mock.ExpectQuery(`SELECT name FROM vehicles WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	_, err := r.DisplayName(context.Background(), b)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
