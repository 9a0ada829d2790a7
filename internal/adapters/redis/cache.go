package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache fronts reservation reads. Entries are short-lived and dropped on
// every mutation, so a stale read can only be as old as the TTL.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func reservationKey(id uuid.UUID) string {
	return "reservation:" + id.String()
}

func (c *Cache) GetReservation(ctx context.Context, id uuid.UUID) ([]byte, error) {
	val, err := c.client.Get(ctx, reservationKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}

func (c *Cache) SetReservation(ctx context.Context, id uuid.UUID, body []byte, ttl time.Duration) error {
	return c.client.Set(ctx, reservationKey(id), body, ttl).Err()
}

func (c *Cache) DropReservation(ctx context.Context, id uuid.UUID) error {
	return c.client.Del(ctx, reservationKey(id)).Err()
}
