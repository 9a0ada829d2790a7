package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
)

// MemoryLedger keeps everything in process. Unit tests and the settlement
// worker tests run against it; production runs against the crdb ledger.
type MemoryLedger struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]domain.Reservation
	auths        map[string]domain.PaymentAuthorization
	events       []Event
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		reservations: make(map[uuid.UUID]domain.Reservation),
		auths:        make(map[string]domain.PaymentAuthorization),
	}
}

func (l *MemoryLedger) record(eventType string, res domain.Reservation) {
	l.events = append(l.events, Event{
		ID:            uuid.New(),
		Type:          eventType,
		ReservationID: res.ID,
		Amount:        res.TotalAmount,
		Currency:      res.Currency,
		OccurredAt:    time.Now().UTC(),
	})
}

// Events returns a copy of everything emitted so far, oldest first.
func (l *MemoryLedger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *MemoryLedger) CreateReservation(ctx context.Context, res domain.Reservation, auth domain.PaymentAuthorization) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.reservations[res.ID]; ok {
		return errors.Wrapf(domain.ErrConflict, "reservation %s already exists", res.ID)
	}
	l.reservations[res.ID] = res
	l.auths[auth.ExternalID] = auth
	l.record(EventCreated, res)
	return nil
}

func (l *MemoryLedger) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[id]
	if !ok {
		return domain.Reservation{}, errors.Wrapf(domain.ErrNotFound, "reservation %s", id)
	}
	return res, nil
}

func (l *MemoryLedger) Update(ctx context.Context, res domain.Reservation, eventType string) (domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.reservations[res.ID]
	if !ok {
		return domain.Reservation{}, errors.Wrapf(domain.ErrNotFound, "reservation %s", res.ID)
	}
	if stored.Version != res.Version {
		return domain.Reservation{}, domain.ErrStaleVersion
	}
	res.Version++
	res.UpdatedAt = time.Now().UTC()
	l.reservations[res.ID] = res
	l.record(eventType, res)
	return res, nil
}

func (l *MemoryLedger) ListSettlementPending(ctx context.Context, limit int) ([]domain.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Reservation
	for _, res := range l.reservations {
		if res.PendingSettlement != nil {
			out = append(out, res)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (l *MemoryLedger) ApplyAuthorizationStatus(ctx context.Context, externalID string, status domain.AuthorizationStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	auth, ok := l.auths[externalID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "authorization %s", externalID)
	}
	if auth.Status == status {
		return nil
	}
	auth.Status = status
	auth.UpdatedAt = time.Now().UTC()
	l.auths[externalID] = auth
	return nil
}

func (l *MemoryLedger) SweepPastStays(ctx context.Context, today time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, res := range l.reservations {
		if res.Status == domain.StatusConfirmed && res.Stay.CheckOut.Before(today) {
			res.Status = domain.StatusCompleted
			res.Version++
			res.UpdatedAt = time.Now().UTC()
			l.reservations[id] = res
			l.record(EventCompleted, res)
			n++
		}
	}
	return n, nil
}
