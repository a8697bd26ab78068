package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/parivision/bridgebet/internal/domain"
)

// checkpointKey holds the single pending-bet document. There is at most one
// in-flight bet per deployment, matching the one-wallet workflow.
const checkpointKey = "bridgebet:pending_bet"

// CheckpointStore implements domain.CheckpointStore on Redis. Redis runs
// with persistence in this deployment, so a completed SET is treated as
// durable.
type CheckpointStore struct {
	rdb *redis.Client
}

// NewCheckpointStore creates a CheckpointStore backed by the given Client.
func NewCheckpointStore(c *Client) *CheckpointStore {
	return &CheckpointStore{rdb: c.Underlying()}
}

// Save persists the pending bet, replacing any previous checkpoint.
func (s *CheckpointStore) Save(ctx context.Context, bet domain.PendingBet) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("redis: marshal checkpoint: %w", err)
	}
	if err := s.rdb.Set(ctx, checkpointKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save checkpoint: %w", err)
	}
	return nil
}

// Load returns the stored pending bet, or domain.ErrNotFound when no
// checkpoint exists.
func (s *CheckpointStore) Load(ctx context.Context) (domain.PendingBet, error) {
	data, err := s.rdb.Get(ctx, checkpointKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.PendingBet{}, domain.ErrNotFound
		}
		return domain.PendingBet{}, fmt.Errorf("redis: load checkpoint: %w", err)
	}

	var bet domain.PendingBet
	if err := json.Unmarshal(data, &bet); err != nil {
		return domain.PendingBet{}, fmt.Errorf("redis: decode checkpoint: %w", err)
	}
	return bet, nil
}

// Delete removes the checkpoint. Deleting a missing checkpoint is not an
// error.
func (s *CheckpointStore) Delete(ctx context.Context) error {
	if err := s.rdb.Del(ctx, checkpointKey).Err(); err != nil {
		return fmt.Errorf("redis: delete checkpoint: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.CheckpointStore = (*CheckpointStore)(nil)
