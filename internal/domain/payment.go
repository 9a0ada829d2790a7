package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuthorizationStatus string

const (
	AuthAuthorized AuthorizationStatus = "AUTHORIZED"
	AuthCaptured   AuthorizationStatus = "CAPTURED"
	AuthRefunded   AuthorizationStatus = "REFUNDED"
	AuthFailed     AuthorizationStatus = "FAILED"
)

// PaymentAuthorization mirrors the provider-side hold. A reservation has at
// most one active authorization at any time.
type PaymentAuthorization struct {
	ExternalID     string
	ReservationID  uuid.UUID
	Amount         int64 // minor currency units
	Currency       string
	Status         AuthorizationStatus
	RefundedAmount int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a PaymentAuthorization) Open() bool {
	return a.Status == AuthAuthorized || a.Status == AuthCaptured
}
