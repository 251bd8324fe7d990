package ports

import (
	"context"
	"time"
)

// Challenge is a pending second-factor login: the password was verified but
// no session token has been issued yet.
type Challenge struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// ChallengeStore holds pending second-factor logins until they expire.
type ChallengeStore interface {
	Save(ctx context.Context, challenge Challenge, ttl time.Duration) error
	// Get returns domain.ErrTwoFactorSessionInvalid for unknown or expired ids.
	Get(ctx context.Context, id string) (*Challenge, error)
	// Delete reports whether this call removed the challenge. Of two
	// concurrent deletes only one observes true.
	Delete(ctx context.Context, id string) (bool, error)
}
