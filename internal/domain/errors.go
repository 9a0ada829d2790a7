package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("room not available for requested dates")
	ErrIllegalTransition    = errors.New("illegal reservation transition")
	ErrPaymentDeclined      = errors.New("payment declined")
	ErrStaleVersion         = errors.New("reservation modified concurrently")
	ErrInvalidInput         = errors.New("invalid input")
)
