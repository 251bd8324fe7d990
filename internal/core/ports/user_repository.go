package ports

import (
	"context"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

// ListUsersFilter narrows an admin listing. Empty fields do not filter.
type ListUsersFilter struct {
	Role               domain.Role
	RegistrationStatus domain.ApprovalStatus
	PivaStatus         domain.ApprovalStatus
	PivaFormSubmitted  *bool
	Limit              int
}

// UserRepository is the credential store. Lookups by email expect an already
// normalized address. Missing users yield domain.ErrUserNotFound; an
// unreachable backend yields an error wrapping domain.ErrStoreUnavailable.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByPaymentCustomerID(ctx context.Context, customerID string) (*domain.User, error)
	// Create inserts user and returns it with its ID set. A taken email
	// yields domain.ErrUserExists.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	// Save overwrites the mutable fields of an existing user.
	Save(ctx context.Context, user *domain.User) error
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, error)
}
