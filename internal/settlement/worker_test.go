package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/ledger"
	"github.com/harborview/reservations/internal/observability"
	"github.com/harborview/reservations/internal/payments"
)

type fixture struct {
	worker   *Worker
	ledger   *ledger.MemoryLedger
	provider *payments.FakeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	led := ledger.NewMemoryLedger()
	provider := payments.NewFakeProvider()
	coord := payments.NewCoordinator(provider, payments.NewMemoryAuthStore(), observability.NewLogger())
	w := NewWorker(led, coord, observability.NewLogger())
	w.backoffBase = time.Millisecond
	return &fixture{worker: w, ledger: led, provider: provider}
}

// flagged seeds a CONFIRMED reservation owing the guest amount on a captured
// authorization.
func (f *fixture) flagged(t *testing.T, amount int64) (domain.Reservation, string) {
	t.Helper()
	ctx := context.Background()

	stay, err := domain.NewStay(time.Now().AddDate(0, 0, 10), time.Now().AddDate(0, 0, 12))
	if err != nil {
		t.Fatalf("NewStay: %v", err)
	}
	auth, err := f.worker.payments.Authorize(ctx, uuid.New(), amount, "USD")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if err := f.worker.payments.Capture(ctx, auth.ExternalID); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	res := domain.NewReservation(uuid.New(), uuid.New(), stay, 2, amount, "USD", auth.ExternalID)
	res.PendingSettlement = &domain.PendingSettlement{AuthorizationID: auth.ExternalID, Amount: amount}
	if err := f.ledger.CreateReservation(ctx, res, auth); err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	return res, auth.ExternalID
}

func TestDrainRefundsAndClearsFlag(t *testing.T) {
	f := newFixture(t)
	res, extID := f.flagged(t, 15000)

	f.worker.Drain(context.Background())

	got, err := f.ledger.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PendingSettlement != nil {
		t.Fatalf("flag still set after drain: %+v", got.PendingSettlement)
	}
	if len(f.provider.RefundCalls) != 1 {
		t.Fatalf("expected 1 refund call, got %d", len(f.provider.RefundCalls))
	}
	call := f.provider.RefundCalls[0]
	if call.ExternalID != extID || call.Amount != 15000 {
		t.Fatalf("unexpected refund call %+v", call)
	}

	left, err := f.ledger.ListSettlementPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListSettlementPending: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(left))
	}
}

func TestDrainRetriesTransientFailure(t *testing.T) {
	f := newFixture(t)
	res, _ := f.flagged(t, 8000)
	f.provider.FailRefund = 2

	f.worker.Drain(context.Background())

	got, err := f.ledger.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PendingSettlement != nil {
		t.Fatalf("flag still set after retries: %+v", got.PendingSettlement)
	}
	if len(f.provider.RefundCalls) != 1 {
		t.Fatalf("expected exactly 1 successful refund, got %d", len(f.provider.RefundCalls))
	}
}

func TestDrainLeavesFlagWhenProviderKeepsFailing(t *testing.T) {
	f := newFixture(t)
	res, _ := f.flagged(t, 8000)
	f.provider.FailRefund = 5

	f.worker.Drain(context.Background())

	got, err := f.ledger.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PendingSettlement == nil {
		t.Fatal("flag cleared even though every refund attempt failed")
	}
	if len(f.provider.RefundCalls) != 0 {
		t.Fatalf("no refund should have landed, got %d", len(f.provider.RefundCalls))
	}

	// a later drain, once the provider recovers, finishes the job
	f.worker.Drain(context.Background())
	got, err = f.ledger.Get(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PendingSettlement != nil {
		t.Fatal("flag still set after provider recovered")
	}
}

func TestSweepCompletesPastStays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past, err := domain.NewStay(time.Now().AddDate(0, 0, -5), time.Now().AddDate(0, 0, -3))
	if err != nil {
		t.Fatalf("NewStay: %v", err)
	}
	future, err := domain.NewStay(time.Now().AddDate(0, 0, 3), time.Now().AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("NewStay: %v", err)
	}

	stale := domain.NewReservation(uuid.New(), uuid.New(), past, 1, 10000, "USD", "auth_a")
	fresh := domain.NewReservation(uuid.New(), uuid.New(), future, 1, 10000, "USD", "auth_b")
	for _, res := range []domain.Reservation{stale, fresh} {
		auth := domain.PaymentAuthorization{ExternalID: res.PaymentRef, ReservationID: res.ID, Amount: res.TotalAmount, Currency: "USD", Status: domain.AuthCaptured}
		if err := f.ledger.CreateReservation(ctx, res, auth); err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	n, err := f.ledger.SweepPastStays(ctx, today)
	if err != nil {
		t.Fatalf("SweepPastStays: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept reservation, got %d", n)
	}

	got, err := f.ledger.Get(ctx, stale.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
	got, err = f.ledger.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusConfirmed {
		t.Fatalf("future stay should stay CONFIRMED, got %s", got.Status)
	}
}
