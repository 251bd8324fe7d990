package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
	"github.com/taxflow/taxflow-api/internal/pkg/password"
)

const minNewPasswordLength = 8

type accountService struct {
	users ports.UserRepository
	now   func() time.Time
	log   zerolog.Logger
}

// NewAccountService returns an AccountService implementation.
func NewAccountService(users ports.UserRepository, log zerolog.Logger) ports.AccountService {
	return &accountService{users: users, now: time.Now, log: log}
}

// Me returns the authoritative record for an authenticated caller. A token
// whose user no longer exists is treated as unauthorized.
func (s *accountService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("me: %w", err)
	}
	return user, nil
}

func (s *accountService) ChangePassword(ctx context.Context, in ports.ChangePasswordInput) error {
	if in.CurrentPassword == "" {
		return domain.InvalidRequest("Current password is required to change password")
	}
	if err := validateNewPassword(in.NewPassword); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUnauthorized
		}
		return fmt.Errorf("change password: %w", err)
	}

	ok, err := password.Compare(user.PasswordHash, in.CurrentPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if !ok {
		return domain.ErrIncorrectPassword
	}

	hash, err := password.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Save(ctx, user); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

func validateNewPassword(pw string) error {
	if utf8.RuneCountInString(pw) < minNewPasswordLength {
		return domain.InvalidFormat("New password must be at least 8 characters long")
	}
	if len(pw) > password.MaxLength {
		return domain.InvalidFormat("New password is too long")
	}

	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return domain.InvalidFormat("New password must contain at least one uppercase letter")
	case !lower:
		return domain.InvalidFormat("New password must contain at least one lowercase letter")
	case !digit:
		return domain.InvalidFormat("New password must contain at least one number")
	}
	return nil
}

// SubmitPivaRequest stores the intake questionnaire. It is only accepted
// while the account sits on the intake screen.
func (s *accountService) SubmitPivaRequest(ctx context.Context, userID string, req domain.PivaRequest) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("submit piva request: %w", err)
	}

	if view := user.View(); view != domain.ScreenPivaIntake {
		return nil, fmt.Errorf("submit piva request: %w (view %s)", domain.ErrInvalidTransition, view)
	}

	req.FiscalCode = strings.ToUpper(strings.TrimSpace(req.FiscalCode))
	now := s.now().UTC()
	req.SubmittedAt = now

	user.PivaRequest = &req
	user.PivaFormSubmitted = true
	user.PivaApprovalStatus = domain.ApprovalPending
	user.UpdatedAt = now

	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("submit piva request: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("piva request submitted")
	return user, nil
}
