package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tourguide-payments/internal/domain"

	"github.com/google/uuid"
)

type TransactionRepo interface {
	Create(ctx context.Context, tx DBTX, t *domain.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindByIntentID(ctx context.Context, intentID string) (*domain.Transaction, error)
	// The ForUpdate variants lock the row until tx ends.
	FindByIDForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Transaction, error)
	FindByIntentIDForUpdate(ctx context.Context, tx DBTX, intentID string) (*domain.Transaction, error)
	// FindCompletedForBooking returns nil when the booking has no completed
	// transaction.
	FindCompletedForBooking(ctx context.Context, db DBTX, ref domain.BookingRef) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
	Update(ctx context.Context, tx DBTX, t *domain.Transaction) error
	// FindPendingBefore returns pending transactions created before the
	// cutoff, least recently reconciled first.
	FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error)
	MarkReconciled(ctx context.Context, id uuid.UUID, at time.Time) error
}

const transactionColumns = `id, user_id, booking_id, booking_type, payment_intent_id, amount, currency, status,
	refunded, refund_id, refund_reason, refunded_at, created_at, completed_at, updated_at`

// oneCompletedConstraint backs the at-most-one-completed-per-booking rule.
const oneCompletedConstraint = "transactions_one_completed_per_booking"

type transactionRepo struct {
	db *sql.DB
}

func NewTransactionRepo(db *sql.DB) TransactionRepo {
	return &transactionRepo{db: db}
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		t            domain.Transaction
		refundID     sql.NullString
		refundReason sql.NullString
		refundedAt   sql.NullTime
		completedAt  sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.BookingID,
		&t.BookingType,
		&t.PaymentIntentID,
		&t.Amount,
		&t.Currency,
		&t.Status,
		&t.Refunded,
		&refundID,
		&refundReason,
		&refundedAt,
		&t.CreatedAt,
		&completedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.RefundID = refundID.String
	t.RefundReason = refundReason.String
	if refundedAt.Valid {
		t.RefundedAt = &refundedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, tx DBTX, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, user_id, booking_id, booking_type, payment_intent_id, amount, currency, status, refunded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.ExecContext(ctx, query,
		t.ID, t.UserID, t.BookingID, t.BookingType, t.PaymentIntentID,
		t.Amount, t.Currency, t.Status, t.Refunded, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *transactionRepo) findOne(ctx context.Context, db DBTX, where string, arg any, lock bool) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where
	if lock {
		query += ` FOR UPDATE`
	}

	t, err := scanTransaction(db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %v", domain.ErrNotFound, arg)
	}
	return t, err
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.findOne(ctx, r.db, "id = $1", id, false)
}

func (r *transactionRepo) FindByIntentID(ctx context.Context, intentID string) (*domain.Transaction, error) {
	return r.findOne(ctx, r.db, "payment_intent_id = $1", intentID, false)
}

func (r *transactionRepo) FindByIDForUpdate(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Transaction, error) {
	return r.findOne(ctx, tx, "id = $1", id, true)
}

func (r *transactionRepo) FindByIntentIDForUpdate(ctx context.Context, tx DBTX, intentID string) (*domain.Transaction, error) {
	return r.findOne(ctx, tx, "payment_intent_id = $1", intentID, true)
}

func (r *transactionRepo) FindCompletedForBooking(ctx context.Context, db DBTX, ref domain.BookingRef) (*domain.Transaction, error) {
	if db == nil {
		db = r.db
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE booking_id = $1 AND booking_type = $2 AND status = $3
		LIMIT 1`

	t, err := scanTransaction(db.QueryRowContext(ctx, query, ref.ID, ref.Type, domain.TransactionCompleted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM transactions WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	transactions := make([]domain.Transaction, 0, limit)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, total, rows.Err()
}

func (r *transactionRepo) Update(ctx context.Context, tx DBTX, t *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    refunded = $3,
		    refund_id = $4,
		    refund_reason = $5,
		    refunded_at = $6,
		    completed_at = $7,
		    updated_at = $8
		WHERE id = $1
	`
	res, err := tx.ExecContext(ctx, query,
		t.ID, t.Status, t.Refunded, nullString(t.RefundID), nullString(t.RefundReason),
		t.RefundedAt, t.CompletedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err, oneCompletedConstraint) {
		return fmt.Errorf("%w: booking %s", domain.ErrAlreadyPaid, t.Booking())
	}
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: transaction %s", domain.ErrNotFound, t.ID)
	}
	return nil
}

func (r *transactionRepo) FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = $1
		AND created_at < $2
		ORDER BY COALESCE(reconciled_at, created_at), id
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, domain.TransactionPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (r *transactionRepo) MarkReconciled(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET reconciled_at = $2 WHERE id = $1`, id, at)
	return err
}
