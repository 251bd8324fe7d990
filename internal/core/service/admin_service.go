package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type adminService struct {
	users ports.UserRepository
	now   func() time.Time
	log   zerolog.Logger
}

// NewAdminService returns an AdminService implementation.
func NewAdminService(users ports.UserRepository, log zerolog.Logger) ports.AdminService {
	return &adminService{users: users, now: time.Now, log: log}
}

func (s *adminService) ListUsers(ctx context.Context, filter ports.ListUsersFilter) ([]*domain.User, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *adminService) DecideRegistration(ctx context.Context, userID string, status domain.ApprovalStatus) (*domain.User, error) {
	if status != domain.ApprovalApproved && status != domain.ApprovalRejected {
		return nil, domain.InvalidFormat("status must be approved or rejected")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("decide registration: %w", err)
	}
	if user.Role != domain.RoleBusiness {
		return nil, fmt.Errorf("decide registration: %w (role %s)", domain.ErrInvalidTransition, user.Role)
	}

	from := user.RegistrationApprovalStatus.Normalize()
	if !from.CanTransitionTo(status) {
		return nil, fmt.Errorf("decide registration: %w (from %s to %s)", domain.ErrInvalidTransition, from, status)
	}

	user.RegistrationApprovalStatus = status
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("decide registration: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("status", string(status)).Msg("registration decided")
	return user, nil
}

// ApprovePiva approves a submitted intake form and assigns the plan the user
// will be asked to pay for.
func (s *adminService) ApprovePiva(ctx context.Context, userID, planID string) (*domain.User, error) {
	plan, ok := domain.PlanByID(planID)
	if !ok {
		return nil, fmt.Errorf("approve piva: %w: %q", domain.ErrPlanNotFound, planID)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("approve piva: %w", err)
	}
	if !user.PivaFormSubmitted {
		return nil, domain.ErrPivaNotSubmitted
	}

	from := user.PivaApprovalStatus.Normalize()
	if !from.CanTransitionTo(domain.ApprovalApproved) {
		return nil, fmt.Errorf("approve piva: %w (from %s)", domain.ErrInvalidTransition, from)
	}

	user.PivaApprovalStatus = domain.ApprovalApproved
	user.SelectedPlan = &plan
	user.SubscriptionStatus = domain.SubscriptionPendingPayment
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("approve piva: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Str("plan", plan.ID).Msg("piva approved")
	return user, nil
}

func (s *adminService) RejectPiva(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reject piva: %w", err)
	}
	if !user.PivaFormSubmitted {
		return nil, domain.ErrPivaNotSubmitted
	}

	from := user.PivaApprovalStatus.Normalize()
	if !from.CanTransitionTo(domain.ApprovalRejected) {
		return nil, fmt.Errorf("reject piva: %w (from %s)", domain.ErrInvalidTransition, from)
	}

	user.PivaApprovalStatus = domain.ApprovalRejected
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("reject piva: %w", err)
	}

	s.log.Info().Str("user_id", user.ID).Msg("piva rejected")
	return user, nil
}
