package server

import (
	"net/http"
	"time"

	"tourguide-payments/internal/database"
	"tourguide-payments/internal/metrics"
	"tourguide-payments/internal/notify"
	"tourguide-payments/internal/service"

	"github.com/rs/zerolog"
)

type Options struct {
	Payments      service.PaymentService
	DB            database.Service
	Hub           *notify.Hub
	Metrics       *metrics.Metrics
	Logger        zerolog.Logger
	JWTSecret     string
	WebhookSecret string
	CORSOrigins   []string
}

type Server struct {
	payments      service.PaymentService
	db            database.Service
	hub           *notify.Hub
	metrics       *metrics.Metrics
	log           zerolog.Logger
	jwtSecret     []byte
	webhookSecret string
	corsOrigins   []string
}

func New(opts Options) *Server {
	return &Server{
		payments:      opts.Payments,
		db:            opts.DB,
		hub:           opts.Hub,
		metrics:       opts.Metrics,
		log:           opts.Logger.With().Str("component", "http").Logger(),
		jwtSecret:     []byte(opts.JWTSecret),
		webhookSecret: opts.WebhookSecret,
		corsOrigins:   opts.CORSOrigins,
	}
}

func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
