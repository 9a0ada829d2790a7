package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/harborview/reservations/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AuthStore keeps payment authorizations keyed by (reservation, amount) so
// Authorize stays idempotent across api instances. Records never expire on
// their own; the ledger holds the durable copy and this is the hot lookup.
type AuthStore struct {
	client *redis.Client
}

func NewAuthStore(client *redis.Client) *AuthStore {
	return &AuthStore{client: client}
}

func authKey(reservationID uuid.UUID, amount int64) string {
	return fmt.Sprintf("auth:res:%s:%d", reservationID, amount)
}

func extKey(externalID string) string {
	return "auth:ext:" + externalID
}

func (s *AuthStore) Get(ctx context.Context, reservationID uuid.UUID, amount int64) (*domain.PaymentAuthorization, error) {
	externalID, err := s.client.Get(ctx, authKey(reservationID, amount)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetByExternalID(ctx, externalID)
}

func (s *AuthStore) Put(ctx context.Context, auth domain.PaymentAuthorization) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, authKey(auth.ReservationID, auth.Amount), auth.ExternalID, 0)
	pipe.Set(ctx, extKey(auth.ExternalID), data, 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *AuthStore) Update(ctx context.Context, auth domain.PaymentAuthorization) error {
	data, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, extKey(auth.ExternalID), data, 0).Err()
}

func (s *AuthStore) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentAuthorization, error) {
	val, err := s.client.Get(ctx, extKey(externalID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var auth domain.PaymentAuthorization
	if err := json.Unmarshal(val, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}
