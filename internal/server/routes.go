package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))
	r.Use(cors.New(s.corsConfig()))

	r.GET("/health", s.healthHandler)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	// Gateway callbacks authenticate by signature, not by bearer token.
	hooks := r.Group("/payments/webhook")
	{
		hooks.POST("", s.stripeWebhookHandler)
		hooks.POST("/confirm", s.confirmWebhookHandler)
		hooks.POST("/fail", s.failWebhookHandler)
	}

	authed := r.Group("/")
	authed.Use(s.authenticate())
	{
		authed.GET("/ws", s.websocketHandler)

		payments := authed.Group("/payments")
		payments.POST("/intent", s.createIntentHandler)
		payments.GET("/history", s.historyHandler)
		payments.GET("/:transactionId", s.transactionHandler)
		payments.POST("/:transactionId/refund", s.refundHandler)
	}

	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.corsOrigins) == 0 || slices.Contains(s.corsOrigins, "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = s.corsOrigins
	}
	return cfg
}
