package domain

import "errors"

type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNotFound        = Error("not found")
	ErrUnauthorized    = Error("unauthorized")
	ErrInvalidState    = Error("invalid state")
	ErrAlreadyPaid     = Error("booking already paid")
	ErrAlreadyRefunded = Error("transaction already refunded")
	ErrGateway         = Error("payment gateway error")
	ErrValidation      = Error("validation error")
)

type ErrorKind string

const (
	KindNotFound        ErrorKind = "NotFound"
	KindUnauthorized    ErrorKind = "Unauthorized"
	KindInvalidState    ErrorKind = "InvalidState"
	KindAlreadyPaid     ErrorKind = "AlreadyPaid"
	KindAlreadyRefunded ErrorKind = "AlreadyRefunded"
	KindGateway         ErrorKind = "GatewayError"
	KindValidation      ErrorKind = "ValidationError"
	KindInternal        ErrorKind = "Internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidState, KindInvalidState},
	{ErrAlreadyPaid, KindAlreadyPaid},
	{ErrAlreadyRefunded, KindAlreadyRefunded},
	{ErrGateway, KindGateway},
	{ErrValidation, KindValidation},
}

// KindOf reports the stable kind of err; anything unrecognised is Internal.
func KindOf(err error) ErrorKind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
