package ports

import (
	"context"
	"time"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

type LoginInput struct {
	Email    string
	Password string
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
}

// Session is an issued token together with the user it belongs to.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// PendingTwoFactor is returned instead of a Session when the account has a
// second factor enrolled.
type PendingTwoFactor struct {
	PendingSessionID string
	UserID           string
	ExpiresAt        time.Time
}

// LoginResult carries exactly one of Session or TwoFactor.
type LoginResult struct {
	Session   *Session
	TwoFactor *PendingTwoFactor
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	VerifyTwoFactor(ctx context.Context, pendingSessionID, code string) (*Session, error)
}

type ChangePasswordInput struct {
	UserID          string
	CurrentPassword string
	NewPassword     string
}

// AccountService covers the operations a signed-in user performs on their
// own account.
type AccountService interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
	ChangePassword(ctx context.Context, in ChangePasswordInput) error
	SubmitPivaRequest(ctx context.Context, userID string, req domain.PivaRequest) (*domain.User, error)
}

// AdminService covers consultant decisions that move accounts through the
// approval flow.
type AdminService interface {
	ListUsers(ctx context.Context, filter ListUsersFilter) ([]*domain.User, error)
	DecideRegistration(ctx context.Context, userID string, status domain.ApprovalStatus) (*domain.User, error)
	ApprovePiva(ctx context.Context, userID, planID string) (*domain.User, error)
	RejectPiva(ctx context.Context, userID string) (*domain.User, error)
}

// TwoFactorEnrollment is returned when a user starts enrolling.
type TwoFactorEnrollment struct {
	Secret     string
	OtpauthURL string
}

// TwoFactorService manages second-factor enrolment for a signed-in user.
type TwoFactorService interface {
	Enable(ctx context.Context, userID string) (*TwoFactorEnrollment, error)
	Confirm(ctx context.Context, userID, code string) error
	Disable(ctx context.Context, userID, password string) error
	Status(ctx context.Context, userID string) (bool, error)
}
