package availability

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
)

type claim struct {
	reservationID uuid.UUID
	stay          domain.Stay
}

// MemoryIndex is the in-process Index: one mutex per room serializes the
// check-and-claim, so unrelated rooms never contend.
type MemoryIndex struct {
	mu    sync.Mutex // guards the rooms map only
	rooms map[uuid.UUID]*roomClaims
}

type roomClaims struct {
	mu     sync.Mutex
	claims []claim
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{rooms: make(map[uuid.UUID]*roomClaims)}
}

func (idx *MemoryIndex) room(roomID uuid.UUID) *roomClaims {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	rc, ok := idx.rooms[roomID]
	if !ok {
		rc = &roomClaims{}
		idx.rooms[roomID] = rc
	}
	return rc
}

func (idx *MemoryIndex) Reserve(ctx context.Context, roomID uuid.UUID, stay domain.Stay, reservationID uuid.UUID) error {
	rc := idx.room(roomID)
	rc.mu.Lock()
	defer rc.mu.Unlock()

	for _, c := range rc.claims {
		if c.reservationID != reservationID && c.stay.Overlaps(stay) {
			return domain.ErrConflict
		}
	}
	rc.claims = append(rc.claims, claim{reservationID: reservationID, stay: stay})
	return nil
}

func (idx *MemoryIndex) Release(ctx context.Context, roomID uuid.UUID, stay domain.Stay, reservationID uuid.UUID) error {
	rc := idx.room(roomID)
	rc.mu.Lock()
	defer rc.mu.Unlock()

	kept := rc.claims[:0]
	for _, c := range rc.claims {
		if c.reservationID == reservationID && c.stay.Equal(stay) {
			continue
		}
		kept = append(kept, c)
	}
	rc.claims = kept
	return nil
}
