// Package payments wraps the external payment provider. The Coordinator is
// the only component that talks to the provider; it makes authorize calls
// idempotent per (reservation, amount) so client retries never create
// duplicate holds.
package payments

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/harborview/reservations/internal/observability"
)

// Provider is the raw provider API. Any transport failure, including a
// timeout, is reported as an error; callers treat it as a declined attempt
// and never advance reservation state on it.
type Provider interface {
	Authorize(ctx context.Context, amount int64, currency string) (externalID string, err error)
	Capture(ctx context.Context, externalID string) error
	Refund(ctx context.Context, externalID string, amount int64) error
}

// AuthStore remembers issued authorizations keyed by reservation and amount,
// the idempotency unit for Authorize.
type AuthStore interface {
	Get(ctx context.Context, reservationID uuid.UUID, amount int64) (*domain.PaymentAuthorization, error)
	Put(ctx context.Context, auth domain.PaymentAuthorization) error
	Update(ctx context.Context, auth domain.PaymentAuthorization) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentAuthorization, error)
}

type Coordinator struct {
	provider Provider
	store    AuthStore
	logger   observability.Logger
}

func NewCoordinator(provider Provider, store AuthStore, logger observability.Logger) *Coordinator {
	return &Coordinator{provider: provider, store: store, logger: logger}
}

// Authorize creates a provider-side hold for amount, or returns the existing
// open authorization if one was already issued for this reservation and
// amount.
func (c *Coordinator) Authorize(ctx context.Context, reservationID uuid.UUID, amount int64, currency string) (domain.PaymentAuthorization, error) {
	existing, err := c.store.Get(ctx, reservationID, amount)
	if err != nil {
		return domain.PaymentAuthorization{}, err
	}
	if existing != nil && existing.Open() {
		return *existing, nil
	}

	externalID, err := c.provider.Authorize(ctx, amount, currency)
	if err != nil {
		observability.PaymentDeclines.Inc()
		return domain.PaymentAuthorization{}, errors.Mark(err, domain.ErrPaymentDeclined)
	}

	now := time.Now().UTC()
	auth := domain.PaymentAuthorization{
		ExternalID:    externalID,
		ReservationID: reservationID,
		Amount:        amount,
		Currency:      currency,
		Status:        domain.AuthAuthorized,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := c.store.Put(ctx, auth); err != nil {
		return domain.PaymentAuthorization{}, err
	}
	return auth, nil
}

func (c *Coordinator) Capture(ctx context.Context, externalID string) error {
	auth, err := c.store.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if auth == nil {
		return errors.Wrapf(domain.ErrNotFound, "authorization %s", externalID)
	}
	if auth.Status == domain.AuthCaptured {
		return nil
	}
	if auth.Status != domain.AuthAuthorized {
		return errors.Wrapf(domain.ErrPaymentDeclined, "authorization %s is %s", externalID, auth.Status)
	}

	if err := c.provider.Capture(ctx, externalID); err != nil {
		observability.PaymentDeclines.Inc()
		return errors.Mark(err, domain.ErrPaymentDeclined)
	}

	auth.Status = domain.AuthCaptured
	auth.UpdatedAt = time.Now().UTC()
	return c.store.Update(ctx, *auth)
}

// Refund returns amount to the guest. Partial refunds are allowed up to the
// captured amount.
func (c *Coordinator) Refund(ctx context.Context, externalID string, amount int64) error {
	auth, err := c.store.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if auth == nil {
		return errors.Wrapf(domain.ErrNotFound, "authorization %s", externalID)
	}
	if auth.Status != domain.AuthCaptured && auth.Status != domain.AuthRefunded {
		return errors.Wrapf(domain.ErrInvalidInput, "cannot refund authorization in status %s", auth.Status)
	}
	if amount <= 0 || auth.RefundedAmount+amount > auth.Amount {
		return errors.Wrapf(domain.ErrInvalidInput, "refund %d exceeds captured %d (already refunded %d)", amount, auth.Amount, auth.RefundedAmount)
	}

	if err := c.provider.Refund(ctx, externalID, amount); err != nil {
		return errors.Mark(err, domain.ErrPaymentDeclined)
	}

	auth.RefundedAmount += amount
	if auth.RefundedAmount == auth.Amount {
		auth.Status = domain.AuthRefunded
	}
	auth.UpdatedAt = time.Now().UTC()
	return c.store.Update(ctx, *auth)
}
