package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
	"github.com/taxflow/taxflow-api/internal/core/ratelimit"
	"github.com/taxflow/taxflow-api/internal/pkg/password"
	"github.com/taxflow/taxflow-api/internal/pkg/token"
	"github.com/taxflow/taxflow-api/internal/pkg/totp"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 128

	DefaultPendingTTL = 5 * time.Minute
)

// AuthOptions tunes the second-factor gate.
type AuthOptions struct {
	PendingTTL time.Duration
	TOTPSkew   int
	Now        func() time.Time
}

// AuthService implements registration, login and the second-factor gate.
type AuthService struct {
	users      ports.UserRepository
	limiter    *ratelimit.Limiter
	tokens     *token.Issuer
	challenges ports.ChallengeStore
	pendingTTL time.Duration
	skew       int
	now        func() time.Time
	log        zerolog.Logger
}

func NewAuthService(
	users ports.UserRepository,
	limiter *ratelimit.Limiter,
	tokens *token.Issuer,
	challenges ports.ChallengeStore,
	opts AuthOptions,
	log zerolog.Logger,
) *AuthService {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = DefaultPendingTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthService{
		users:      users,
		limiter:    limiter,
		tokens:     tokens,
		challenges: challenges,
		pendingTTL: opts.PendingTTL,
		skew:       opts.TOTPSkew,
		now:        opts.Now,
		log:        log,
	}
}

// validateCredentials normalizes and checks the shape of a login attempt.
// It never touches the limiter or the store.
func validateCredentials(rawEmail, rawPassword string) (string, string, error) {
	email := domain.NormalizeEmail(rawEmail)
	pw := strings.TrimSpace(rawPassword)

	if !domain.ValidEmail(email) {
		return "", "", domain.InvalidFormat("Invalid email format")
	}
	n := utf8.RuneCountInString(pw)
	if n < minPasswordLength {
		return "", "", domain.InvalidFormat("Password must be at least 6 characters")
	}
	if n > maxPasswordLength {
		return "", "", domain.InvalidFormat("Password is too long")
	}
	return email, pw, nil
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
	email := domain.NormalizeEmail(in.Email)
	pw := strings.TrimSpace(in.Password)
	name := strings.TrimSpace(in.Name)

	if email == "" || pw == "" || name == "" {
		return nil, domain.InvalidRequest("Email, password, and name are required")
	}
	if !domain.ValidEmail(email) {
		return nil, domain.InvalidFormat("Invalid email format")
	}
	if utf8.RuneCountInString(pw) < minPasswordLength {
		return nil, domain.InvalidFormat("Password must be at least 6 characters")
	}
	if len(pw) > password.MaxLength {
		return nil, domain.InvalidFormat("Password is too long")
	}

	hash, err := password.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	user := domain.NewBusinessUser(email, name, strings.TrimSpace(in.Phone), hash, s.now().UTC())
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Msg("user registered")
	return s.issue(created)
}

func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	email, pw, err := validateCredentials(in.Email, in.Password)
	if err != nil {
		return nil, err
	}

	decision, err := s.limiter.Check(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w: %v", domain.ErrStoreUnavailable, err)
	}
	if !decision.Allowed {
		s.log.Warn().Str("email", email).Int("retry_after", decision.RemainingSeconds).Msg("login rate limited")
		return nil, &domain.RateLimitError{RemainingSeconds: decision.RemainingSeconds}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Same bcrypt cost as a wrong password.
			_, _ = password.Compare(password.DummyHash(), pw)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	ok, err := password.Compare(user.PasswordHash, pw)
	if err != nil {
		return nil, fmt.Errorf("login: user %s: %w", user.ID, err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.limiter.Clear(ctx, email); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("failed to clear rate limit entry")
	}

	if user.TwoFactorEnabled {
		pending, err := s.startChallenge(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		s.log.Info().Str("user_id", user.ID).Msg("login awaiting second factor")
		return &ports.LoginResult{TwoFactor: pending}, nil
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("user logged in")
	return &ports.LoginResult{Session: session}, nil
}

func (s *AuthService) startChallenge(ctx context.Context, userID string) (*ports.PendingTwoFactor, error) {
	ch := ports.Challenge{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: s.now().Add(s.pendingTTL),
	}
	if err := s.challenges.Save(ctx, ch, s.pendingTTL); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}
	return &ports.PendingTwoFactor{
		PendingSessionID: ch.ID,
		UserID:           userID,
		ExpiresAt:        ch.ExpiresAt,
	}, nil
}

// VerifyTwoFactor completes a pending login. The pending-session id is the
// userId the login response handed out.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, pendingSessionID, code string) (*ports.Session, error) {
	if strings.TrimSpace(pendingSessionID) == "" {
		return nil, domain.InvalidRequest("userId and token are required")
	}
	if !totp.IsCode(code) {
		return nil, domain.InvalidFormat("Verification code must be 6 digits")
	}

	ch, err := s.challenges.Get(ctx, pendingSessionID)
	if err != nil {
		return nil, fmt.Errorf("verify 2fa: %w", err)
	}
	user, err := s.users.FindByID(ctx, ch.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrTwoFactorSessionInvalid
		}
		return nil, fmt.Errorf("verify 2fa: %w", err)
	}

	ok, err := totp.Verify(user.TwoFactorSecret, code, s.now(), s.skew)
	if err != nil {
		return nil, fmt.Errorf("verify 2fa: user %s: %w", user.ID, err)
	}
	if !ok {
		s.log.Warn().Str("user_id", user.ID).Msg("invalid second factor code")
		return nil, domain.ErrTwoFactorCodeInvalid
	}

	deleted, err := s.challenges.Delete(ctx, ch.ID)
	if err != nil {
		return nil, fmt.Errorf("verify 2fa: %w", err)
	}
	if !deleted {
		return nil, domain.ErrTwoFactorSessionInvalid
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, fmt.Errorf("verify 2fa: %w", err)
	}
	s.log.Info().Str("user_id", user.ID).Msg("user logged in with second factor")
	return session, nil
}

func (s *AuthService) issue(user *domain.User) (*ports.Session, error) {
	signed, exp, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &ports.Session{Token: signed, ExpiresAt: exp, User: user}, nil
}
