package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

// ChallengeStore implements ports.ChallengeStore. Redis expiry enforces the
// pending-session TTL.
// Key format: 2fa:pending:<challenge_id>
type ChallengeStore struct {
	client *redis.Client
}

func NewChallengeStore(client *redis.Client) *ChallengeStore {
	return &ChallengeStore{client: client}
}

func (s *ChallengeStore) Save(ctx context.Context, ch ports.Challenge, ttl time.Duration) error {
	key := s.key(ch.ID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "user_id", ch.UserID, "expires_at", ch.ExpiresAt.Unix())
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("challenge save: %w", err)
	}
	return nil
}

func (s *ChallengeStore) Get(ctx context.Context, id string) (*ports.Challenge, error) {
	vals, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("challenge get: %w", err)
	}
	if len(vals) == 0 || vals["user_id"] == "" {
		return nil, domain.ErrTwoFactorSessionInvalid
	}

	exp, _ := strconv.ParseInt(vals["expires_at"], 10, 64)
	return &ports.Challenge{
		ID:        id,
		UserID:    vals["user_id"],
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}, nil
}

// Delete relies on DEL's reply count so only one of two racing callers
// observes true.
func (s *ChallengeStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("challenge delete: %w", err)
	}
	return n > 0, nil
}

func (s *ChallengeStore) key(id string) string {
	return "2fa:pending:" + id
}

var _ ports.ChallengeStore = (*ChallengeStore)(nil)
