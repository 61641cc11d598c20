package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourguide-payments/internal/config"
	"tourguide-payments/internal/database"
	"tourguide-payments/internal/infrastructure/payment"
	"tourguide-payments/internal/logging"
	"tourguide-payments/internal/metrics"
	"tourguide-payments/internal/notify"
	"tourguide-payments/internal/repo"
	"tourguide-payments/internal/server"
	"tourguide-payments/internal/service"
	"tourguide-payments/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.Pretty())
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Pretty() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.DB)
	if err != nil {
		return err
	}
	dbService := database.New(db)
	defer dbService.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	m := metrics.New()
	gateway := payment.WithMetrics(newGateway(cfg.Gateway, log), m)

	hub := notify.NewHub(log, cfg.CORSOrigins...)
	go hub.Run(ctx)

	notifiers := notify.Multi{hub}
	if cfg.RedisURL != "" {
		rdb, err := notify.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		notifiers = append(notifiers, notify.NewRedisPublisher(rdb))
	}

	transactions := repo.NewTransactionRepo(db)
	payments := service.NewPaymentService(service.Deps{
		DB:           database.NewTransactor(db),
		Bookings:     repo.NewBookingRepo(db),
		Transactions: transactions,
		Directory:    repo.NewDirectoryRepo(db),
		Gateway:      gateway,
		Notifier:     notifiers,
		Logger:       log,
		Metrics:      m,
		Currency:     cfg.Gateway.Currency,
	})

	if cfg.Reconcile.Enabled {
		w := worker.NewReconciliationWorker(transactions, payments, gateway, m, log, worker.Options{
			Interval:    cfg.Reconcile.Interval,
			MinAge:      cfg.Reconcile.MinAge,
			Batch:       cfg.Reconcile.Batch,
			ExpireAfter: cfg.Reconcile.ExpireAfter,
		})
		go w.Run(ctx)
	}

	srv := server.New(server.Options{
		Payments:      payments,
		DB:            dbService,
		Hub:           hub,
		Metrics:       m,
		Logger:        log,
		JWTSecret:     cfg.JWTSecret,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		CORSOrigins:   cfg.CORSOrigins,
	}).HTTPServer(cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("gateway", cfg.Gateway.Kind).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newGateway(cfg config.Gateway, log zerolog.Logger) payment.PaymentGateway {
	if cfg.Kind == "mock" {
		log.Warn().Float64("fail_rate", cfg.MockFailRate).Msg("using in-memory payment gateway")
		return payment.NewMockGateway(cfg.MockFailRate)
	}
	return payment.NewStripeGateway(payment.StripeOptions{SecretKey: cfg.StripeSecret})
}
