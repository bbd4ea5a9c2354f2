package dedupe

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultCheckpointKey = "user-admin:profile-deleted:resume-token"

// Checkpoint keeps a single stream resume token in Redis so a restarted worker
// continues where the previous one stopped.
type Checkpoint struct {
	client *redis.Client
	key    string
}

// NewCheckpoint stores the token under key. An empty key uses the default.
func NewCheckpoint(client *redis.Client, key string) *Checkpoint {
	if key == "" {
		key = defaultCheckpointKey
	}
	return &Checkpoint{client: client, key: key}
}

// Load returns the saved token, or nil when none was saved yet.
func (c *Checkpoint) Load(ctx context.Context) ([]byte, error) {
	token, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Save overwrites the token. It does not expire.
func (c *Checkpoint) Save(ctx context.Context, token []byte) error {
	return c.client.Set(ctx, c.key, token, 0).Err()
}

// Clear drops the saved token.
func (c *Checkpoint) Clear(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
