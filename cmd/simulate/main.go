package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"tourguide-payments/internal/config"
	"tourguide-payments/internal/database"
	"tourguide-payments/internal/domain"
	"tourguide-payments/internal/infrastructure/payment"
	"tourguide-payments/internal/logging"
	"tourguide-payments/internal/metrics"
	"tourguide-payments/internal/notify"
	"tourguide-payments/internal/repo"
	"tourguide-payments/internal/service"
	"tourguide-payments/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// simulate drives bookings through the payment lifecycle against a real
// database with the in-memory gateway. Some webhooks are "lost" on purpose so
// the reconciliation worker has stuck transactions to settle.
func main() {
	var (
		bookings   = flag.Int("bookings", 20, "number of bookings to simulate")
		failRate   = flag.Float64("fail-rate", 0.3, "share of intents the gateway declines")
		lostRate   = flag.Float64("lost-rate", 0.2, "share of webhooks that never arrive")
		refundRate = flag.Float64("refund-rate", 0.25, "share of paid bookings refunded afterwards")
	)
	flag.Parse()

	log := logging.New("info", true)
	if err := run(log, *bookings, *failRate, *lostRate, *refundRate); err != nil {
		log.Error().Err(err).Msg("simulation failed")
		os.Exit(1)
	}
}

type simulation struct {
	db        *sql.DB
	bookings  repo.BookingRepo
	ledger    repo.TransactionRepo
	directory repo.DirectoryRepo
	gateway   *payment.MockGateway
	payments  service.PaymentService
	log       zerolog.Logger
}

func run(log zerolog.Logger, n int, failRate, lostRate, refundRate float64) error {
	ctx := context.Background()

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	db, err := database.NewPostgres(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	m := metrics.New()
	sim := &simulation{
		db:        db,
		bookings:  repo.NewBookingRepo(db),
		ledger:    repo.NewTransactionRepo(db),
		directory: repo.NewDirectoryRepo(db),
		gateway:   payment.NewMockGateway(failRate),
		log:       log,
	}
	events := notify.Func(func(_ context.Context, e domain.PaymentEvent) error {
		log.Debug().Str("event", string(e.Type)).Str("transaction_id", e.TransactionID.String()).Msg("event")
		return nil
	})
	sim.payments = service.NewPaymentService(service.Deps{
		DB:           database.NewTransactor(db),
		Bookings:     sim.bookings,
		Transactions: sim.ledger,
		Directory:    sim.directory,
		Gateway:      payment.WithMetrics(sim.gateway, m),
		Notifier:     events,
		Logger:       log,
		Metrics:      m,
		Currency:     "usd",
	})

	fmt.Printf("--- STARTING SIMULATION (%d BOOKINGS) ---\n", n)
	seeded := make([]domain.Booking, 0, n)
	for i := range n {
		b, err := sim.seed(ctx, i)
		if err != nil {
			return fmt.Errorf("seed booking %d: %w", i, err)
		}
		seeded = append(seeded, b)
		sim.pay(ctx, i, b, lostRate, refundRate)
	}

	fmt.Println("--- RUNNING RECONCILIATION ---")
	w := worker.NewReconciliationWorker(sim.ledger, sim.payments, sim.gateway, m, log, worker.Options{
		Interval: time.Second,
		MinAge:   0,
	})
	runCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	w.Run(runCtx)

	fmt.Println("--- FINAL STATE ---")
	for _, b := range seeded {
		sim.report(ctx, b)
	}
	return nil
}

func (s *simulation) seed(ctx context.Context, i int) (domain.Booking, error) {
	customer, provider := uuid.New(), uuid.New()
	start := time.Now().UTC().AddDate(0, 0, 7+i).Truncate(24 * time.Hour)
	record := domain.BookingRecord{
		ID:            uuid.New(),
		CustomerID:    customer,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 1+rand.IntN(4)),
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		TotalPrice:    decimal.New(int64(2000+rand.IntN(48000)), -2),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}

	var booking domain.Booking
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.directory.CreateUser(ctx, tx, customer, fmt.Sprintf("Traveller %d", i), customer.String()+"@sim.local"); err != nil {
			return err
		}

		if i%2 == 0 {
			guideUser := uuid.New()
			if err := s.directory.CreateUser(ctx, tx, guideUser, fmt.Sprintf("Guide %d", i), guideUser.String()+"@sim.local"); err != nil {
				return err
			}
			if err := s.directory.CreateGuide(ctx, tx, provider, guideUser); err != nil {
				return err
			}
			booking = &domain.GuideBooking{BookingRecord: record, GuideID: provider}
		} else {
			owner := uuid.New()
			if err := s.directory.CreateUser(ctx, tx, owner, fmt.Sprintf("Driver %d", i), owner.String()+"@sim.local"); err != nil {
				return err
			}
			if err := s.directory.CreateVehicle(ctx, tx, provider, owner, fmt.Sprintf("Jeep #%d", i)); err != nil {
				return err
			}
			booking = &domain.VehicleBooking{BookingRecord: record, VehicleID: provider}
		}
		return s.bookings.Create(ctx, tx, booking)
	})
	return booking, err
}

func (s *simulation) pay(ctx context.Context, i int, b domain.Booking, lostRate, refundRate float64) {
	fmt.Printf("[%d] %s total=%s ... ", i+1, b.Ref(), b.Total().StringFixed(2))

	res, err := s.payments.CreatePaymentIntent(ctx, b.Ref(), b.OwnerID())
	if err != nil {
		fmt.Printf("INTENT FAILED: %v\n", err)
		return
	}

	t, err := s.payments.GetTransaction(ctx, res.TransactionID, b.OwnerID())
	if err != nil {
		fmt.Printf("LOOKUP FAILED: %v\n", err)
		return
	}

	succeeded := s.gateway.SettleRandom(t.PaymentIntentID)
	if rand.Float64() < lostRate {
		fmt.Printf("WEBHOOK LOST (gateway succeeded=%t)\n", succeeded)
		return
	}

	if !succeeded {
		_, err = s.payments.HandlePaymentFailure(ctx, t.PaymentIntentID)
		fmt.Printf("DECLINED %v\n", errOrOK(err))
		return
	}

	if _, err = s.payments.ConfirmPayment(ctx, t.PaymentIntentID); err != nil {
		fmt.Printf("CONFIRM FAILED: %v\n", err)
		return
	}
	fmt.Print("PAID")

	if rand.Float64() < refundRate {
		_, err = s.payments.ProcessRefund(ctx, t.ID, b.OwnerID(), "simulated cancellation")
		fmt.Printf(", REFUNDED %v", errOrOK(err))
	}
	fmt.Println()
}

func (s *simulation) report(ctx context.Context, b domain.Booking) {
	fresh, err := s.bookings.Find(ctx, b.Ref())
	if err != nil {
		s.log.Error().Err(err).Str("booking", b.Ref().String()).Msg("reload booking")
		return
	}

	history, err := s.payments.GetTransactionHistory(ctx, b.OwnerID(), 1, service.MaxLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("load history")
		return
	}

	fmt.Printf("%s booking=%s/%s", b.Ref(), fresh.CurrentStatus(), fresh.CurrentPaymentStatus())
	for _, t := range history.Transactions {
		fmt.Printf(" tx=%s", t.Status)
		if t.Refunded {
			fmt.Print("+refunded")
		}
	}
	fmt.Println()
}

func errOrOK(err error) string {
	if err != nil {
		return "(" + err.Error() + ")"
	}
	return "(ok)"
}
