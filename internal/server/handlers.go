package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"tourguide-payments/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createIntentRequest struct {
	BookingID   string `json:"bookingId" binding:"required"`
	BookingType string `json:"bookingType" binding:"required"`
}

type refundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) createIntentHandler(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err), userStatus)
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: bookingId is not a valid id", domain.ErrValidation), userStatus)
		return
	}
	bookingType, err := domain.ParseBookingType(req.BookingType)
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}

	res, err := s.payments.CreatePaymentIntent(c.Request.Context(), domain.BookingRef{ID: bookingID, Type: bookingType}, currentUser(c))
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) refundHandler(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: transactionId is not a valid id", domain.ErrValidation), userStatus)
		return
	}

	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", domain.ErrValidation, err), userStatus)
		return
	}

	res, err := s.payments.ProcessRefund(c.Request.Context(), transactionID, currentUser(c), req.Reason)
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) historyHandler(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}

	history, err := s.payments.GetTransactionHistory(c.Request.Context(), currentUser(c), page, limit)
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (s *Server) transactionHandler(c *gin.Context) {
	transactionID, err := uuid.Parse(c.Param("transactionId"))
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: transactionId is not a valid id", domain.ErrValidation), userStatus)
		return
	}

	t, err := s.payments.GetTransaction(c.Request.Context(), transactionID, currentUser(c))
	if err != nil {
		s.respondError(c, err, userStatus)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) websocketHandler(c *gin.Context) {
	if s.hub == nil {
		c.Status(http.StatusNotFound)
		return
	}
	if err := s.hub.ServeWS(c.Writer, c.Request, currentUser(c)); err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	stats := s.db.Health(ctx)
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// queryInt returns 0 when the parameter is absent so defaults apply.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrValidation, name)
	}
	return n, nil
}
