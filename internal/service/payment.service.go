package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tourguide-payments/internal/database"
	"tourguide-payments/internal/domain"
	"tourguide-payments/internal/infrastructure/payment"
	"tourguide-payments/internal/metrics"
	"tourguide-payments/internal/notify"
	"tourguide-payments/internal/repo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type IntentResult struct {
	ClientSecret  string          `json:"clientSecret"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID uuid.UUID       `json:"transactionId"`
}

type RefundResult struct {
	Transaction *domain.Transaction `json:"transaction"`
	Refund      *payment.Refund     `json:"refund"`
}

type History struct {
	Transactions []domain.Transaction `json:"transactions"`
	Total        int                  `json:"total"`
	Page         int                  `json:"page"`
	Pages        int                  `json:"pages"`
	Limit        int                  `json:"limit"`
}

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, ref domain.BookingRef, userID uuid.UUID) (*IntentResult, error)
	ConfirmPayment(ctx context.Context, intentID string) (*domain.Transaction, error)
	HandlePaymentFailure(ctx context.Context, intentID string) (*domain.Transaction, error)
	ProcessRefund(ctx context.Context, transactionID, userID uuid.UUID, reason string) (*RefundResult, error)
	// ReleaseDuplicatePayment refunds a charge that succeeded after its
	// booking had already been paid by another transaction, and fails it.
	ReleaseDuplicatePayment(ctx context.Context, intentID string) (*domain.Transaction, error)
	GetTransactionHistory(ctx context.Context, userID uuid.UUID, page, limit int) (*History, error)
	GetTransaction(ctx context.Context, transactionID, userID uuid.UUID) (*domain.Transaction, error)
}

type Deps struct {
	DB           database.Transactor
	Bookings     repo.BookingRepo
	Transactions repo.TransactionRepo
	Directory    repo.DirectoryRepo
	Gateway      payment.PaymentGateway
	Notifier     notify.Notifier
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	Currency     string
	Clock        func() time.Time
}

type paymentService struct {
	db           database.Transactor
	bookings     repo.BookingRepo
	transactions repo.TransactionRepo
	directory    repo.DirectoryRepo
	gateway      payment.PaymentGateway
	notifier     notify.Notifier
	log          zerolog.Logger
	metrics      *metrics.Metrics
	currency     string
	now          func() time.Time
}

func NewPaymentService(d Deps) PaymentService {
	s := &paymentService{
		db:           d.DB,
		bookings:     d.Bookings,
		transactions: d.Transactions,
		directory:    d.Directory,
		gateway:      d.Gateway,
		notifier:     d.Notifier,
		log:          d.Logger.With().Str("component", "payment_service").Logger(),
		metrics:      d.Metrics,
		currency:     d.Currency,
		now:          d.Clock,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.currency == "" {
		s.currency = "usd"
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, ref domain.BookingRef, userID uuid.UUID) (res *IntentResult, err error) {
	defer s.observe("create_intent", &err)

	booking, err := s.bookings.Find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID() != userID {
		return nil, fmt.Errorf("%w: booking %s belongs to another user", domain.ErrUnauthorized, ref)
	}

	paid, err := s.transactions.FindCompletedForBooking(ctx, nil, ref)
	if err != nil {
		return nil, fmt.Errorf("find completed transaction: %w", err)
	}
	if paid != nil {
		return nil, fmt.Errorf("%w: booking %s", domain.ErrAlreadyPaid, ref)
	}

	if booking.CurrentStatus() == domain.BookingCancelled {
		return nil, fmt.Errorf("%w: booking %s is cancelled", domain.ErrInvalidState, ref)
	}
	amount := booking.Total()
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: booking %s has no payable total", domain.ErrValidation, ref)
	}

	name, err := s.directory.DisplayName(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("resolve display name: %w", err)
	}

	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		AmountMinor: domain.ToMinorUnits(amount),
		Currency:    s.currency,
		Description: fmt.Sprintf("Payment for %s booking with %s", ref.Type, name),
		Metadata: map[string]string{
			"booking_id":   ref.ID.String(),
			"booking_type": string(ref.Type),
			"user_id":      userID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	t := domain.NewPendingTransaction(userID, ref, intent.ID, amount, s.currency, s.now())
	err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		return s.transactions.Create(ctx, tx, t)
	})
	if err != nil {
		s.log.Error().Err(err).Str("intent_id", intent.ID).Msg("gateway intent created but transaction not recorded")
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	s.log.Info().
		Str("transaction_id", t.ID.String()).
		Str("booking", ref.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("payment intent created")
	s.emit(ctx, domain.EventIntentCreated, t)

	return &IntentResult{
		ClientSecret:  intent.ClientSecret,
		Amount:        domain.FromMinorUnits(domain.ToMinorUnits(amount)),
		TransactionID: t.ID,
	}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, intentID string) (t *domain.Transaction, err error) {
	defer s.observe("confirm", &err)

	var applied bool
	err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		found, err := s.transactions.FindByIntentIDForUpdate(ctx, tx, intentID)
		if err != nil {
			return err
		}
		t = found
		if t.Status == domain.TransactionCompleted {
			return nil
		}

		other, err := s.transactions.FindCompletedForBooking(ctx, tx, t.Booking())
		if err != nil {
			return fmt.Errorf("find completed transaction: %w", err)
		}
		if other != nil && other.ID != t.ID {
			return fmt.Errorf("%w: booking %s settled by transaction %s", domain.ErrAlreadyPaid, t.Booking(), other.ID)
		}

		if err := t.Complete(s.now()); err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, tx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := s.bookings.UpdateStatus(ctx, tx, t.Booking(), domain.PatchPaid); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		s.log.Info().Str("intent_id", intentID).Msg("payment already confirmed")
		return t, nil
	}

	s.log.Info().Str("transaction_id", t.ID.String()).Str("booking", t.Booking().String()).Msg("payment confirmed")
	s.emit(ctx, domain.EventConfirmed, t)
	return t, nil
}

func (s *paymentService) HandlePaymentFailure(ctx context.Context, intentID string) (t *domain.Transaction, err error) {
	defer s.observe("fail", &err)

	var applied bool
	err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		found, err := s.transactions.FindByIntentIDForUpdate(ctx, tx, intentID)
		if err != nil {
			return err
		}
		t = found
		if t.Status == domain.TransactionFailed {
			return nil
		}
		if err := t.Fail(s.now()); err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, tx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.log.Info().Str("transaction_id", t.ID.String()).Msg("payment failed")
		s.emit(ctx, domain.EventFailed, t)
	}
	return t, nil
}

func (s *paymentService) ProcessRefund(ctx context.Context, transactionID, userID uuid.UUID, reason string) (res *RefundResult, err error) {
	defer s.observe("refund", &err)

	t, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if err := t.CheckRefundable(userID); err != nil {
		return nil, err
	}

	refund, err := s.gateway.CreateRefund(ctx, payment.RefundRequest{
		IntentID:       t.PaymentIntentID,
		Reason:         reason,
		IdempotencyKey: "refund-" + t.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.transactions.FindByIDForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if err := locked.CheckRefundable(userID); err != nil {
			return err
		}
		if err := locked.MarkRefunded(refund.ID, reason, s.now()); err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, tx, locked); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if err := s.bookings.UpdateStatus(ctx, tx, locked.Booking(), domain.PatchRefunded); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		t = locked
		return nil
	})
	if err != nil {
		// A concurrent refund that won the row lock has already recorded it.
		if domain.KindOf(err) == domain.KindInternal {
			s.log.Error().Err(err).
				Str("transaction_id", transactionID.String()).
				Str("refund_id", refund.ID).
				Msg("gateway refund issued but not recorded")
		}
		return nil, err
	}

	s.log.Info().Str("transaction_id", t.ID.String()).Str("refund_id", refund.ID).Msg("payment refunded")
	s.emit(ctx, domain.EventRefunded, t)
	return &RefundResult{Transaction: t, Refund: refund}, nil
}

func (s *paymentService) ReleaseDuplicatePayment(ctx context.Context, intentID string) (t *domain.Transaction, err error) {
	defer s.observe("release_duplicate", &err)

	t, err = s.transactions.FindByIntentID(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.TransactionPending {
		return nil, fmt.Errorf("%w: transaction %s is %s", domain.ErrInvalidState, t.ID, t.Status)
	}

	paidBy, err := s.transactions.FindCompletedForBooking(ctx, nil, t.Booking())
	if err != nil {
		return nil, fmt.Errorf("find completed transaction: %w", err)
	}
	if paidBy == nil || paidBy.ID == t.ID {
		return nil, fmt.Errorf("%w: booking %s has no other completed payment", domain.ErrInvalidState, t.Booking())
	}

	refund, err := s.gateway.CreateRefund(ctx, payment.RefundRequest{
		IntentID:       t.PaymentIntentID,
		Reason:         domain.DuplicateChargeReason,
		IdempotencyKey: "refund-" + t.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	err = s.db.WithinTx(ctx, func(tx *sql.Tx) error {
		locked, err := s.transactions.FindByIDForUpdate(ctx, tx, t.ID)
		if err != nil {
			return err
		}
		if err := locked.ReleaseDuplicate(refund.ID, s.now()); err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, tx, locked); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		t = locked
		return nil
	})
	if err != nil {
		if domain.KindOf(err) == domain.KindInternal {
			s.log.Error().Err(err).
				Str("intent_id", intentID).
				Str("refund_id", refund.ID).
				Msg("duplicate charge refunded but not recorded")
		}
		return nil, err
	}

	s.log.Warn().
		Str("transaction_id", t.ID.String()).
		Str("paid_by", paidBy.ID.String()).
		Str("refund_id", refund.ID).
		Msg("duplicate charge refunded")
	s.emit(ctx, domain.EventDuplicate, t)
	return t, nil
}

func (s *paymentService) GetTransactionHistory(ctx context.Context, userID uuid.UUID, page, limit int) (*History, error) {
	page, limit = NormalizePage(page, limit)

	transactions, total, err := s.transactions.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return &History{
		Transactions: transactions,
		Total:        total,
		Page:         page,
		Pages:        (total + limit - 1) / limit,
		Limit:        limit,
	}, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, transactionID, userID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.transactions.FindByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, fmt.Errorf("%w: transaction %s belongs to another user", domain.ErrUnauthorized, transactionID)
	}
	return t, nil
}

// NormalizePage clamps page to >= 1 and limit to 1..MaxLimit, substituting
// defaults for zero values.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

func (s *paymentService) emit(ctx context.Context, typ domain.EventType, t *domain.Transaction) {
	event := domain.NewPaymentEvent(typ, t, s.now())
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.Warn().Err(err).Str("event", string(typ)).Str("transaction_id", t.ID.String()).Msg("notify failed")
	}
}

func (s *paymentService) observe(operation string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(domain.KindOf(*err))
	}
	s.metrics.ObserveOperation(operation, outcome)
}
