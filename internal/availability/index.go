// Package availability owns room/date-range claims, the exclusive holds that
// prevent double-booking. A claim is keyed by room and compared by half-open
// interval overlap.
package availability

import (
	"context"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
)

// Index linearizes claims per room: of two concurrent Reserve calls for
// overlapping stays on the same room, exactly one succeeds.
type Index interface {
	// Reserve claims the stay for reservationID. Returns domain.ErrConflict
	// if any other reservation already holds an overlapping claim; on
	// failure no state changes.
	Reserve(ctx context.Context, roomID uuid.UUID, stay domain.Stay, reservationID uuid.UUID) error
	// Release drops the claim. Releasing a claim that is absent is a no-op.
	Release(ctx context.Context, roomID uuid.UUID, stay domain.Stay, reservationID uuid.UUID) error
}
