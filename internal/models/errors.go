package models

import "errors"

// Domain errors shared between repositories, services and HTTP handlers.
// Handlers map these onto status codes; everything else is a 500.
var (
	ErrNotFound             = errors.New("not found")
	ErrConnectorUnavailable = errors.New("connector unavailable")
	ErrUserAlreadyCharging  = errors.New("user already has an active session")
	ErrReservationConflict  = errors.New("reservation time slot conflicts")
	ErrAlreadyClosed        = errors.New("transaction already closed")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInvalidStatus        = errors.New("invalid connector status")
)
