package domain

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type ReservationStatus string

const (
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCheckedIn ReservationStatus = "CHECKED_IN"
	StatusCompleted ReservationStatus = "COMPLETED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusRefunded  ReservationStatus = "REFUNDED"
)

// Terminal reports whether no further transition is permitted from s.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

var transitions = map[ReservationStatus][]ReservationStatus{
	StatusConfirmed: {StatusConfirmed, StatusCheckedIn, StatusCancelled, StatusRefunded},
	StatusCheckedIn: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal move in the
// reservation state machine. Modify is the CONFIRMED self-transition.
func CanTransition(from, to ReservationStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Stay is a half-open [CheckIn, CheckOut) calendar interval. Times are
// normalized to midnight UTC.
type Stay struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewStay(checkIn, checkOut time.Time) (Stay, error) {
	s := Stay{CheckIn: dateOnly(checkIn), CheckOut: dateOnly(checkOut)}
	if !s.CheckOut.After(s.CheckIn) {
		return Stay{}, errors.WithDetail(ErrInvalidInput, "check-out must be after check-in")
	}
	return s, nil
}

func (s Stay) Overlaps(other Stay) bool {
	return s.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(s.CheckOut)
}

func (s Stay) Equal(other Stay) bool {
	return s.CheckIn.Equal(other.CheckIn) && s.CheckOut.Equal(other.CheckOut)
}

func (s Stay) Nights() int {
	n := int(s.CheckOut.Sub(s.CheckIn).Hours() / 24)
	if n < 1 {
		n = 1
	}
	return n
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ChangeRequest is a staged modification awaiting a follow-up payment.
// It exists only while an upgrade (delta > 0) is in flight; the reservation
// keeps its old terms until the payment for the new amount succeeds.
type ChangeRequest struct {
	RoomID     uuid.UUID
	Stay       Stay
	GuestCount int
	NewAmount  int64
	Delta      int64
}

// PendingSettlement marks money still owed to the guest after a committed
// state change whose refund failed. The commit stands; the settlement worker
// retries the refund until it lands.
type PendingSettlement struct {
	AuthorizationID string
	Amount          int64
}

type Reservation struct {
	ID          uuid.UUID
	GuestID     uuid.UUID
	RoomID      uuid.UUID
	Stay        Stay
	GuestCount  int
	Status      ReservationStatus
	TotalAmount int64 // minor currency units
	Currency    string
	PaymentRef  string // external id of the active authorization
	CheckedInAt *time.Time

	PendingChange     *ChangeRequest
	PendingSettlement *PendingSettlement

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewReservation(guestID, roomID uuid.UUID, stay Stay, guestCount int, amount int64, currency, paymentRef string) Reservation {
	now := time.Now().UTC()
	return Reservation{
		ID:          uuid.New(),
		GuestID:     guestID,
		RoomID:      roomID,
		Stay:        stay,
		GuestCount:  guestCount,
		Status:      StatusConfirmed,
		TotalAmount: amount,
		Currency:    currency,
		PaymentRef:  paymentRef,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
