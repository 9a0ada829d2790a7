// Package ledger is the persistence and notification boundary for
// reservations. It is the only writer of reservation and payment records;
// every committed transition also produces a change event for downstream
// read-models (availability calendars, revenue reports).
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
)

// Event types emitted on commit.
const (
	EventCreated             = "reservation.created"
	EventModified            = "reservation.modified"
	EventModificationStaged  = "reservation.modification_staged"
	EventModificationDropped = "reservation.modification_abandoned"
	EventCancelled           = "reservation.cancelled"
	EventRefunded            = "reservation.refunded"
	EventCheckedIn           = "reservation.checked_in"
	EventCompleted           = "reservation.completed"
	EventSettlementFlagged   = "reservation.settlement_flagged"
	EventSettlementResolved  = "reservation.settlement_resolved"
)

type Event struct {
	ID            uuid.UUID
	Type          string
	ReservationID uuid.UUID
	Amount        int64
	Currency      string
	OccurredAt    time.Time
}

// Ledger persists reservations under a single-writer discipline. Update uses
// the record's Version for an optimistic check: a write against a stale view
// fails with domain.ErrStaleVersion and nothing is committed.
type Ledger interface {
	CreateReservation(ctx context.Context, res domain.Reservation, auth domain.PaymentAuthorization) error
	Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	// Update commits res (whose Version must equal the stored version),
	// bumps the version, and records an event of the given type atomically.
	Update(ctx context.Context, res domain.Reservation, eventType string) (domain.Reservation, error)
	// ListSettlementPending returns reservations still owing a refund.
	ListSettlementPending(ctx context.Context, limit int) ([]domain.Reservation, error)
	// ApplyAuthorizationStatus accepts idempotent status updates from the
	// provider webhook. Repeated deliveries of the same status are no-ops.
	ApplyAuthorizationStatus(ctx context.Context, externalID string, status domain.AuthorizationStatus) error
	// SweepPastStays marks CONFIRMED reservations whose check-out has
	// passed as COMPLETED and returns how many were updated.
	SweepPastStays(ctx context.Context, today time.Time) (int, error)
}
