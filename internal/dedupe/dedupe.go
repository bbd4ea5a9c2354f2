// Package dedupe drops repeated deliveries of the same trigger.
package dedupe

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "user-admin:profile-deleted:"

// Store remembers delivery ids for a bounded time.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New returns a store keyed under prefix. An empty prefix uses the default.
func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// MarkOnce records the delivery and reports whether it was seen for the first time.
func (s *Store) MarkOnce(ctx context.Context, deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, errors.New("delivery id is required")
	}
	ok, err := s.client.SetNX(ctx, s.prefix+deliveryID, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Forget releases a delivery so a redelivery is handled again.
func (s *Store) Forget(ctx context.Context, deliveryID string) error {
	return s.client.Del(ctx, s.prefix+deliveryID).Err()
}
