package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
	"github.com/taxflow/taxflow-api/internal/pkg/password"
	"github.com/taxflow/taxflow-api/internal/pkg/totp"
)

type twoFactorService struct {
	users  ports.UserRepository
	issuer string
	skew   int
	now    func() time.Time
	log    zerolog.Logger
}

// NewTwoFactorService returns a TwoFactorService implementation. issuer is
// the label authenticator apps display next to the account.
func NewTwoFactorService(users ports.UserRepository, issuer string, skew int, log zerolog.Logger) ports.TwoFactorService {
	return &twoFactorService{users: users, issuer: issuer, skew: skew, now: time.Now, log: log}
}

func (s *twoFactorService) load(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}

// Enable stores a fresh secret. The second factor stays inactive until
// Confirm sees a valid code for it.
func (s *twoFactorService) Enable(ctx context.Context, userID string) (*ports.TwoFactorEnrollment, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("enable 2fa: %w", err)
	}
	if user.TwoFactorEnabled {
		return nil, domain.ErrTwoFactorAlreadyEnabled
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, fmt.Errorf("enable 2fa: %w", err)
	}
	user.TwoFactorSecret = secret
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("enable 2fa: %w", err)
	}

	return &ports.TwoFactorEnrollment{
		Secret:     secret,
		OtpauthURL: totp.ProvisionURI(secret, s.issuer, user.Email),
	}, nil
}

func (s *twoFactorService) Confirm(ctx context.Context, userID, code string) error {
	if !totp.IsCode(code) {
		return domain.InvalidFormat("Verification code must be 6 digits")
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return fmt.Errorf("confirm 2fa: %w", err)
	}
	if user.TwoFactorSecret == "" {
		return domain.ErrTwoFactorNotEnrolled
	}

	ok, err := totp.Verify(user.TwoFactorSecret, code, s.now(), s.skew)
	if err != nil {
		return fmt.Errorf("confirm 2fa: %w", err)
	}
	if !ok {
		return domain.ErrTwoFactorCodeInvalid
	}

	user.TwoFactorEnabled = true
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("confirm 2fa: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("two-factor authentication enabled")
	return nil
}

func (s *twoFactorService) Disable(ctx context.Context, userID, pw string) error {
	if pw == "" {
		return domain.InvalidRequest("Password is required to disable two-factor authentication")
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return fmt.Errorf("disable 2fa: %w", err)
	}

	ok, err := password.Compare(user.PasswordHash, pw)
	if err != nil {
		return fmt.Errorf("disable 2fa: %w", err)
	}
	if !ok {
		return domain.ErrIncorrectPassword
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("disable 2fa: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("two-factor authentication disabled")
	return nil
}

func (s *twoFactorService) Status(ctx context.Context, userID string) (bool, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("2fa status: %w", err)
	}
	return user.TwoFactorEnabled, nil
}
