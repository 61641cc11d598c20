package server

import (
	"net/http"

	"tourguide-payments/internal/domain"

	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func userStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindValidation, domain.KindInvalidState, domain.KindAlreadyPaid, domain.KindAlreadyRefunded:
		return http.StatusBadRequest
	case domain.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// webhookStatus tells the gateway whether redelivering the event can help:
// 4xx stops retries, 5xx asks for another attempt.
func webhookStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindAlreadyPaid:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage hides gateway and storage internals from clients.
func publicMessage(kind domain.ErrorKind, err error) string {
	switch kind {
	case domain.KindGateway:
		return "payment provider error"
	case domain.KindInternal:
		return "internal server error"
	default:
		return err.Error()
	}
}

func (s *Server) respondError(c *gin.Context, err error, status func(domain.ErrorKind) int) {
	kind := domain.KindOf(err)
	code := status(kind)

	event := s.log.Warn()
	if code >= http.StatusInternalServerError {
		event = s.log.Error()
	}
	event.Err(err).Str("kind", string(kind)).Str("route", c.FullPath()).Msg("request failed")

	c.JSON(code, errorBody{Error: errorDetail{Kind: string(kind), Message: publicMessage(kind, err)}})
}
