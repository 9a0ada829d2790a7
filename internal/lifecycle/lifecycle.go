// Package lifecycle owns the reservation state machine. Every transition
// (create, modify, cancel, check-in, check-out) runs through one authoritative
// function here and produces a single atomic ledger commit.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/availability"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/ledger"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/payments"
	"github.com/harborview/reservations/internal/policy"
	"github.com/harborview/reservations/internal/pricing"
)

// Catalog is the read-only room/room-type lookup supplied by the catalog
// service.
type Catalog interface {
	Room(ctx context.Context, id uuid.UUID) (domain.Room, error)
	RoomType(ctx context.Context, id uuid.UUID) (domain.RoomType, error)
}

type Service struct {
	index    availability.Index
	payments *payments.Coordinator
	pricing  *pricing.Calculator
	policy   *policy.CancellationPolicy
	ledger   ledger.Ledger
	catalog  Catalog
	currency string
	logger   observability.Logger
	locks    reservationLocks
	now      func() time.Time
}

func NewService(index availability.Index, coord *payments.Coordinator, calc *pricing.Calculator, pol *policy.CancellationPolicy, led ledger.Ledger, catalog Catalog, currency string, logger observability.Logger) *Service {
	return &Service{
		index:    index,
		payments: coord,
		pricing:  calc,
		policy:   pol,
		ledger:   led,
		catalog:  catalog,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// reservationLocks serializes transitions per reservation id. The ledger's
// optimistic version check is the backstop across processes; this keeps a
// single process from even racing itself.
type reservationLocks struct {
	mu sync.Mutex
	m  map[uuid.UUID]*sync.Mutex
}

func (l *reservationLocks) lock(id uuid.UUID) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.m[id]
	if !ok {
		m = &sync.Mutex{}
		l.m[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

type CreateParams struct {
	GuestID    uuid.UUID
	RoomID     uuid.UUID
	CheckIn    time.Time
	CheckOut   time.Time
	GuestCount int
}

// Create prices the stay, claims availability, then moves money. The claim is
// taken before the provider is touched so a payment failure never leaves an
// orphaned room hold; the claim is released on any failure.
func (s *Service) Create(ctx context.Context, p CreateParams) (domain.Reservation, error) {
	stay, err := domain.NewStay(p.CheckIn, p.CheckOut)
	if err != nil {
		return domain.Reservation{}, err
	}
	room, roomType, err := s.lookupRoom(ctx, p.RoomID, p.GuestCount)
	if err != nil {
		return domain.Reservation{}, err
	}

	amount := s.pricing.Quote(roomType.NightlyRate, stay, p.GuestCount)
	resID := uuid.New()

	if err := s.index.Reserve(ctx, room.ID, stay, resID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			observability.ConflictsTotal.Inc()
		}
		return domain.Reservation{}, err
	}

	auth, err := s.payments.Authorize(ctx, resID, amount, s.currency)
	if err != nil {
		s.release(ctx, room.ID, stay, resID)
		return domain.Reservation{}, err
	}
	if err := s.payments.Capture(ctx, auth.ExternalID); err != nil {
		s.release(ctx, room.ID, stay, resID)
		return domain.Reservation{}, err
	}
	auth.Status = domain.AuthCaptured

	res := domain.NewReservation(p.GuestID, room.ID, stay, p.GuestCount, amount, s.currency, auth.ExternalID)
	res.ID = resID
	if err := s.ledger.CreateReservation(ctx, res, auth); err != nil {
		s.release(ctx, room.ID, stay, resID)
		if rerr := s.payments.Refund(ctx, auth.ExternalID, amount); rerr != nil {
			s.logger.WithError(rerr).WithField("reservation_id", resID).Error("refund after failed commit; money is stranded at the provider")
		}
		return domain.Reservation{}, err
	}

	observability.TransitionsTotal.WithLabelValues("create").Inc()
	return res, nil
}

type ModifyParams struct {
	RoomID     *uuid.UUID
	CheckIn    *time.Time
	CheckOut   *time.Time
	GuestCount *int
}

type ModifyResult struct {
	Reservation domain.Reservation
	// PaymentRequired is set when the new total exceeds the old one. The
	// reservation keeps its old terms until ConfirmModification succeeds.
	PaymentRequired bool
	Delta           int64
	NewAmount       int64
}

// Modify re-prices a CONFIRMED reservation against new room/dates/guests and
// settles the difference. The new claim is taken before the old one is
// released so the room is never observably unclaimed in between.
func (s *Service) Modify(ctx context.Context, id uuid.UUID, p ModifyParams) (ModifyResult, error) {
	defer s.locks.lock(id)()

	res, err := s.ledger.Get(ctx, id)
	if err != nil {
		return ModifyResult{}, err
	}
	if res.Status != domain.StatusConfirmed {
		return ModifyResult{}, errors.Wrapf(domain.ErrIllegalTransition, "cannot modify a %s reservation", res.Status)
	}
	if res.PendingChange != nil {
		return ModifyResult{}, errors.Wrap(domain.ErrConflict, "a modification is already awaiting payment")
	}

	newRoomID := res.RoomID
	if p.RoomID != nil {
		newRoomID = *p.RoomID
	}
	newStay := res.Stay
	if p.CheckIn != nil || p.CheckOut != nil {
		in, out := res.Stay.CheckIn, res.Stay.CheckOut
		if p.CheckIn != nil {
			in = *p.CheckIn
		}
		if p.CheckOut != nil {
			out = *p.CheckOut
		}
		newStay, err = domain.NewStay(in, out)
		if err != nil {
			return ModifyResult{}, err
		}
	}
	newGuests := res.GuestCount
	if p.GuestCount != nil {
		newGuests = *p.GuestCount
	}

	_, roomType, err := s.lookupRoom(ctx, newRoomID, newGuests)
	if err != nil {
		return ModifyResult{}, err
	}

	newAmount := s.pricing.Quote(roomType.NightlyRate, newStay, newGuests)
	delta := newAmount - res.TotalAmount
	moved := newRoomID != res.RoomID || !newStay.Equal(res.Stay)

	if moved {
		if err := s.index.Reserve(ctx, newRoomID, newStay, res.ID); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				observability.ConflictsTotal.Inc()
			}
			return ModifyResult{}, err
		}
	}

	if delta > 0 {
		res.PendingChange = &domain.ChangeRequest{
			RoomID:     newRoomID,
			Stay:       newStay,
			GuestCount: newGuests,
			NewAmount:  newAmount,
			Delta:      delta,
		}
		staged, err := s.ledger.Update(ctx, res, ledger.EventModificationStaged)
		if err != nil {
			if moved {
				s.release(ctx, newRoomID, newStay, res.ID)
			}
			return ModifyResult{}, err
		}
		return ModifyResult{Reservation: staged, PaymentRequired: true, Delta: delta, NewAmount: newAmount}, nil
	}

	oldRoomID, oldStay := res.RoomID, res.Stay
	res.RoomID = newRoomID
	res.Stay = newStay
	res.GuestCount = newGuests
	res.TotalAmount = newAmount

	committed, err := s.ledger.Update(ctx, res, ledger.EventModified)
	if err != nil {
		if moved {
			s.release(ctx, newRoomID, newStay, res.ID)
		}
		return ModifyResult{}, err
	}
	if moved {
		s.release(ctx, oldRoomID, oldStay, res.ID)
	}

	if delta < 0 {
		committed = s.refundOrFlag(ctx, committed, committed.PaymentRef, -delta)
	}

	observability.TransitionsTotal.WithLabelValues("modify").Inc()
	return ModifyResult{Reservation: committed, Delta: delta, NewAmount: newAmount}, nil
}

// ConfirmModification applies a staged upgrade once the follow-up payment for
// the new amount succeeds. The old authorization is retired by a full refund
// after the new capture, so the guest is never charged twice for long.
func (s *Service) ConfirmModification(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	defer s.locks.lock(id)()

	res, err := s.ledger.Get(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if res.Status != domain.StatusConfirmed || res.PendingChange == nil {
		return domain.Reservation{}, errors.Wrap(domain.ErrIllegalTransition, "no modification awaiting payment")
	}
	change := *res.PendingChange

	auth, err := s.payments.Authorize(ctx, res.ID, change.NewAmount, s.currency)
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := s.payments.Capture(ctx, auth.ExternalID); err != nil {
		return domain.Reservation{}, err
	}

	oldRoomID, oldStay := res.RoomID, res.Stay
	oldAuthID, oldAmount := res.PaymentRef, res.TotalAmount
	moved := change.RoomID != oldRoomID || !change.Stay.Equal(oldStay)

	res.RoomID = change.RoomID
	res.Stay = change.Stay
	res.GuestCount = change.GuestCount
	res.TotalAmount = change.NewAmount
	res.PaymentRef = auth.ExternalID
	res.PendingChange = nil

	committed, err := s.ledger.Update(ctx, res, ledger.EventModified)
	if err != nil {
		if rerr := s.payments.Refund(ctx, auth.ExternalID, change.NewAmount); rerr != nil {
			s.logger.WithError(rerr).WithField("reservation_id", res.ID).Error("refund of follow-up capture after failed commit")
		}
		return domain.Reservation{}, err
	}
	if moved {
		s.release(ctx, oldRoomID, oldStay, res.ID)
	}

	committed = s.refundOrFlag(ctx, committed, oldAuthID, oldAmount)

	observability.TransitionsTotal.WithLabelValues("modify").Inc()
	return committed, nil
}

// AbandonModification drops a staged upgrade, releasing its claim. The
// reservation keeps its committed terms.
func (s *Service) AbandonModification(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	defer s.locks.lock(id)()

	res, err := s.ledger.Get(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if res.PendingChange == nil {
		return domain.Reservation{}, errors.Wrap(domain.ErrIllegalTransition, "no modification awaiting payment")
	}
	change := *res.PendingChange
	res.PendingChange = nil

	committed, err := s.ledger.Update(ctx, res, ledger.EventModificationDropped)
	if err != nil {
		return domain.Reservation{}, err
	}
	if change.RoomID != res.RoomID || !change.Stay.Equal(res.Stay) {
		s.release(ctx, change.RoomID, change.Stay, res.ID)
	}
	return committed, nil
}

// Cancel ends a CONFIRMED reservation. The cancellation policy decides
// whether the guest gets a full refund (REFUNDED) or forfeits the payment
// (CANCELLED); either way the room claim is released.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	defer s.locks.lock(id)()

	res, err := s.ledger.Get(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if res.Status != domain.StatusConfirmed {
		return domain.Reservation{}, errors.Wrapf(domain.ErrIllegalTransition, "cannot cancel a %s reservation", res.Status)
	}

	refund := s.policy.RefundEligible(res.Stay.CheckIn)
	event := ledger.EventCancelled
	res.Status = domain.StatusCancelled
	if refund {
		res.Status = domain.StatusRefunded
		event = ledger.EventRefunded
	}
	// a staged upgrade dies with the reservation
	staged := res.PendingChange
	res.PendingChange = nil

	committed, err := s.ledger.Update(ctx, res, event)
	if err != nil {
		return domain.Reservation{}, err
	}
	s.release(ctx, res.RoomID, res.Stay, res.ID)
	if staged != nil && (staged.RoomID != res.RoomID || !staged.Stay.Equal(res.Stay)) {
		s.release(ctx, staged.RoomID, staged.Stay, res.ID)
	}

	if refund {
		committed = s.refundOrFlag(ctx, committed, committed.PaymentRef, committed.TotalAmount)
	}

	observability.TransitionsTotal.WithLabelValues("cancel").Inc()
	return committed, nil
}

// CheckIn moves CONFIRMED to CHECKED_IN. The desk can only check a guest in
// during the stay window.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	defer s.locks.lock(id)()

	res, err := s.ledger.Get(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !domain.CanTransition(res.Status, domain.StatusCheckedIn) {
		return domain.Reservation{}, errors.Wrapf(domain.ErrIllegalTransition, "cannot check in a %s reservation", res.Status)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if today.Before(res.Stay.CheckIn) {
		return domain.Reservation{}, errors.Wrapf(domain.ErrInvalidInput, "cannot check in before %s", res.Stay.CheckIn.Format("2006-01-02"))
	}
	if !today.Before(res.Stay.CheckOut) {
		return domain.Reservation{}, errors.Wrapf(domain.ErrInvalidInput, "cannot check in on or after %s", res.Stay.CheckOut.Format("2006-01-02"))
	}

	res.Status = domain.StatusCheckedIn
	res.CheckedInAt = &now

	committed, err := s.ledger.Update(ctx, res, ledger.EventCheckedIn)
	if err != nil {
		return domain.Reservation{}, err
	}
	observability.TransitionsTotal.WithLabelValues("check_in").Inc()
	return committed, nil
}

// CheckOut moves CHECKED_IN to COMPLETED. The stay is already paid; no
// payment or availability effect.
func (s *Service) CheckOut(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	defer s.locks.lock(id)()

	res, err := s.ledger.Get(ctx, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !domain.CanTransition(res.Status, domain.StatusCompleted) {
		return domain.Reservation{}, errors.Wrapf(domain.ErrIllegalTransition, "cannot check out a %s reservation", res.Status)
	}

	res.Status = domain.StatusCompleted
	committed, err := s.ledger.Update(ctx, res, ledger.EventCompleted)
	if err != nil {
		return domain.Reservation{}, err
	}
	observability.TransitionsTotal.WithLabelValues("check_out").Inc()
	return committed, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	return s.ledger.Get(ctx, id)
}

func (s *Service) lookupRoom(ctx context.Context, roomID uuid.UUID, guestCount int) (domain.Room, domain.RoomType, error) {
	room, err := s.catalog.Room(ctx, roomID)
	if err != nil {
		return domain.Room{}, domain.RoomType{}, err
	}
	roomType, err := s.catalog.RoomType(ctx, room.RoomTypeID)
	if err != nil {
		return domain.Room{}, domain.RoomType{}, err
	}
	if guestCount < 1 || guestCount > roomType.Capacity {
		return domain.Room{}, domain.RoomType{}, errors.Wrapf(domain.ErrInvalidInput, "guest count %d outside 1..%d", guestCount, roomType.Capacity)
	}
	return room, roomType, nil
}

// refundOrFlag issues a refund for an already-committed change. A failed
// refund never reverts the commit; the reservation is flagged and the
// settlement worker retries until the money lands.
func (s *Service) refundOrFlag(ctx context.Context, res domain.Reservation, authID string, amount int64) domain.Reservation {
	err := s.payments.Refund(ctx, authID, amount)
	if err == nil {
		return res
	}
	s.logger.WithError(err).WithField("reservation_id", res.ID).Warn("refund failed post-commit, flagging for settlement")

	res.PendingSettlement = &domain.PendingSettlement{AuthorizationID: authID, Amount: amount}
	flagged, err := s.ledger.Update(ctx, res, ledger.EventSettlementFlagged)
	if err != nil {
		s.logger.WithError(err).WithField("reservation_id", res.ID).Error("could not persist settlement flag")
		return res
	}
	observability.SettlementBacklog.Inc()
	return flagged
}

func (s *Service) release(ctx context.Context, roomID uuid.UUID, stay domain.Stay, resID uuid.UUID) {
	if err := s.index.Release(ctx, roomID, stay, resID); err != nil {
		s.logger.WithError(err).WithField("reservation_id", resID).Error("failed to release availability claim")
	}
}
