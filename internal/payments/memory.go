package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
)

// MemoryAuthStore is the in-process AuthStore used by tests and the
// single-node deployment.
type MemoryAuthStore struct {
	mu    sync.Mutex
	byKey map[string]string // reservation+amount -> externalID
	byExt map[string]domain.PaymentAuthorization
}

func NewMemoryAuthStore() *MemoryAuthStore {
	return &MemoryAuthStore{
		byKey: make(map[string]string),
		byExt: make(map[string]domain.PaymentAuthorization),
	}
}

func authKey(reservationID uuid.UUID, amount int64) string {
	return fmt.Sprintf("%s:%d", reservationID, amount)
}

func (s *MemoryAuthStore) Get(ctx context.Context, reservationID uuid.UUID, amount int64) (*domain.PaymentAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext, ok := s.byKey[authKey(reservationID, amount)]
	if !ok {
		return nil, nil
	}
	auth := s.byExt[ext]
	return &auth, nil
}

func (s *MemoryAuthStore) Put(ctx context.Context, auth domain.PaymentAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[authKey(auth.ReservationID, auth.Amount)] = auth.ExternalID
	s.byExt[auth.ExternalID] = auth
	return nil
}

func (s *MemoryAuthStore) Update(ctx context.Context, auth domain.PaymentAuthorization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byExt[auth.ExternalID] = auth
	return nil
}

func (s *MemoryAuthStore) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentAuthorization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	auth, ok := s.byExt[externalID]
	if !ok {
		return nil, nil
	}
	return &auth, nil
}

// FakeProvider simulates the provider for tests: it can be told to decline
// the next N calls of a given kind.
type FakeProvider struct {
	mu             sync.Mutex
	seq            int
	FailAuthorize  int
	FailCapture    int
	FailRefund     int
	AuthorizeCalls int
	RefundCalls    []RefundCall
}

type RefundCall struct {
	ExternalID string
	Amount     int64
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{}
}

func (p *FakeProvider) Authorize(ctx context.Context, amount int64, currency string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AuthorizeCalls++
	if p.FailAuthorize > 0 {
		p.FailAuthorize--
		return "", fmt.Errorf("provider declined authorization of %d %s", amount, currency)
	}
	p.seq++
	return fmt.Sprintf("auth_%06d", p.seq), nil
}

func (p *FakeProvider) Capture(ctx context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailCapture > 0 {
		p.FailCapture--
		return fmt.Errorf("provider declined capture of %s", externalID)
	}
	return nil
}

func (p *FakeProvider) Refund(ctx context.Context, externalID string, amount int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailRefund > 0 {
		p.FailRefund--
		return fmt.Errorf("provider refused refund of %d on %s", amount, externalID)
	}
	p.RefundCalls = append(p.RefundCalls, RefundCall{ExternalID: externalID, Amount: amount})
	return nil
}
