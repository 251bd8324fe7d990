package session

import (
	"time"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

// Screen is the application view derived from a user's account state.
type Screen = domain.Screen

// Plan is the subscription plan selected for an account.
type Plan struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Interval string  `json:"interval"`
}

// User is the account record as the API returns it.
type User struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Phone string      `json:"phone,omitempty"`
	Role  domain.Role `json:"role"`

	RegistrationApprovalStatus domain.ApprovalStatus `json:"registrationApprovalStatus,omitempty"`
	PivaFormSubmitted          bool                  `json:"pivaFormSubmitted"`
	PivaApprovalStatus         domain.ApprovalStatus `json:"pivaApprovalStatus,omitempty"`

	SubscriptionStatus           domain.SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	SelectedPlan                 *Plan                     `json:"selectedPlan,omitempty"`
	SubscriptionCurrentPeriodEnd *time.Time                `json:"subscriptionCurrentPeriodEnd,omitempty"`

	TwoFactorEnabled bool `json:"twoFactorEnabled"`
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	cp := *u
	if u.SelectedPlan != nil {
		plan := *u.SelectedPlan
		cp.SelectedPlan = &plan
	}
	if u.SubscriptionCurrentPeriodEnd != nil {
		end := *u.SubscriptionCurrentPeriodEnd
		cp.SubscriptionCurrentPeriodEnd = &end
	}
	return &cp
}

// View maps the user to the screen the server would choose for it.
func (u *User) View() Screen {
	return domain.ComputeView(domain.AccountState{
		Role:                       u.Role,
		RegistrationApprovalStatus: u.RegistrationApprovalStatus,
		PivaFormSubmitted:          u.PivaFormSubmitted,
		PivaApprovalStatus:         u.PivaApprovalStatus,
		SubscriptionStatus:         u.SubscriptionStatus,
	})
}
