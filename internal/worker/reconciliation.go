package worker

import (
	"context"
	"time"

	"tourguide-payments/internal/domain"
	"tourguide-payments/internal/infrastructure/payment"
	"tourguide-payments/internal/metrics"
	"tourguide-payments/internal/repo"
	"tourguide-payments/internal/service"

	"github.com/rs/zerolog"
)

// ReconciliationWorker settles transactions whose webhook never arrived by
// asking the gateway for the real outcome of their intent.
type ReconciliationWorker struct {
	transactions repo.TransactionRepo
	payments     service.PaymentService
	gateway      payment.PaymentGateway
	metrics      *metrics.Metrics
	log          zerolog.Logger

	interval    time.Duration
	minAge      time.Duration
	expireAfter time.Duration
	batch       int
	now         func() time.Time
}

type Options struct {
	Interval time.Duration
	// MinAge leaves recent intents to their webhooks.
	MinAge time.Duration
	// ExpireAfter cancels intents still pending this long after creation.
	// Zero keeps them pending indefinitely.
	ExpireAfter time.Duration
	Batch       int
}

const (
	resultSucceeded = "succeeded"
	resultFailed    = "failed"
	resultExpired   = "expired"
	resultDuplicate = "duplicate"
	resultPending   = "pending"
	resultError     = "error"
)

func NewReconciliationWorker(
	transactions repo.TransactionRepo,
	payments service.PaymentService,
	gateway payment.PaymentGateway,
	m *metrics.Metrics,
	log zerolog.Logger,
	opts Options,
) *ReconciliationWorker {
	if opts.Batch <= 0 {
		opts.Batch = 100
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &ReconciliationWorker{
		transactions: transactions,
		payments:     payments,
		gateway:      gateway,
		metrics:      m,
		log:          log.With().Str("component", "reconciliation").Logger(),
		interval:     opts.Interval,
		minAge:       opts.MinAge,
		expireAfter:  opts.ExpireAfter,
		batch:        opts.Batch,
		now:          time.Now,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.Info().Dur("interval", rw.interval).Dur("min_age", rw.minAge).Msg("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			rw.log.Info().Msg("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.Process(ctx); err != nil {
				rw.log.Error().Err(err).Msg("reconciliation failed")
			}
		}
	}
}

// Process runs one reconciliation pass and returns how many transactions
// changed state. Every examined transaction is stamped, so the next pass
// starts with the ones looked at least recently and a batch of intents that
// cannot be settled yet never hides newer ones.
func (rw *ReconciliationWorker) Process(ctx context.Context) (int, error) {
	now := rw.now()
	stuck, err := rw.transactions.FindPendingBefore(ctx, now.Add(-rw.minAge), rw.batch)
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}

	rw.log.Info().Int("count", len(stuck)).Msg("found stuck transactions")

	settled := 0
	for _, t := range stuck {
		result := rw.reconcile(ctx, t, now)
		rw.record(result)
		if result != resultPending && result != resultError {
			settled++
		}

		if err := rw.transactions.MarkReconciled(ctx, t.ID, now); err != nil {
			rw.log.Warn().Err(err).Str("transaction_id", t.ID.String()).Msg("stamp reconciled transaction")
		}
	}
	return settled, nil
}

func (rw *ReconciliationWorker) reconcile(ctx context.Context, t domain.Transaction, now time.Time) string {
	log := rw.log.With().Str("transaction_id", t.ID.String()).Str("intent_id", t.PaymentIntentID).Logger()

	status, err := rw.gateway.IntentStatus(ctx, t.PaymentIntentID)
	if err != nil {
		log.Warn().Err(err).Msg("intent status lookup failed")
		return resultError
	}

	var result string
	switch status {
	case payment.IntentSucceeded:
		result = resultSucceeded
		_, err = rw.payments.ConfirmPayment(ctx, t.PaymentIntentID)
		if domain.KindOf(err) == domain.KindAlreadyPaid {
			// The booking was paid through another intent; this charge is a duplicate.
			result = resultDuplicate
			_, err = rw.payments.ReleaseDuplicatePayment(ctx, t.PaymentIntentID)
		}
	case payment.IntentFailed:
		result = resultFailed
		_, err = rw.payments.HandlePaymentFailure(ctx, t.PaymentIntentID)
	default:
		if rw.expireAfter <= 0 || now.Sub(t.CreatedAt) < rw.expireAfter {
			return resultPending
		}
		result = resultExpired
		if err = rw.gateway.CancelIntent(ctx, t.PaymentIntentID); err == nil {
			_, err = rw.payments.HandlePaymentFailure(ctx, t.PaymentIntentID)
		}
	}

	if err != nil {
		log.Error().Err(err).
			Str("kind", string(domain.KindOf(err))).
			Str("attempted", result).
			Msg("reconcile transaction")
		return resultError
	}

	log.Info().Str("result", result).Msg("transaction reconciled")
	return result
}

func (rw *ReconciliationWorker) record(result string) {
	if rw.metrics == nil {
		return
	}
	rw.metrics.Reconciled.WithLabelValues(result).Inc()
}
