package domain

import "time"

// Role is the authorization role of a user.
type Role string

const (
	RoleBusiness      Role = "business"
	RoleAdmin         Role = "admin"
	RoleSynetichAdmin Role = "synetich_admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleBusiness, RoleAdmin, RoleSynetichAdmin:
		return true
	}
	return false
}

// ApprovalStatus is shared by the registration and P.IVA approval steps.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Normalize maps the absent value to pending.
func (s ApprovalStatus) Normalize() ApprovalStatus {
	if s == "" {
		return ApprovalPending
	}
	return s
}

// Valid reports whether s is a known, non-empty status.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// SubscriptionStatus mirrors the payment provider's subscription lifecycle.
type SubscriptionStatus string

const (
	SubscriptionNone           SubscriptionStatus = ""
	SubscriptionActive         SubscriptionStatus = "active"
	SubscriptionPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionPastDue        SubscriptionStatus = "past_due"
	SubscriptionCanceled       SubscriptionStatus = "canceled"
	SubscriptionTrialing       SubscriptionStatus = "trialing"
)

// Valid reports whether s is a status the webhook may set.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionActive, SubscriptionPendingPayment, SubscriptionPastDue,
		SubscriptionCanceled, SubscriptionTrialing:
		return true
	}
	return false
}

// PivaRequest is the P.IVA intake questionnaire submitted by a business user.
type PivaRequest struct {
	HasExistingPiva     bool      `json:"hasExistingPiva"`
	ExistingPivaNumber  string    `json:"existingPivaNumber,omitempty"`
	FirstName           string    `json:"firstName"`
	LastName            string    `json:"lastName"`
	DateOfBirth         string    `json:"dateOfBirth"`
	PlaceOfBirth        string    `json:"placeOfBirth"`
	FiscalCode          string    `json:"fiscalCode"`
	ResidenceAddress    string    `json:"residenceAddress"`
	ResidenceCity       string    `json:"residenceCity"`
	ResidenceCAP        string    `json:"residenceCAP"`
	ResidenceProvince   string    `json:"residenceProvince"`
	BusinessActivity    string    `json:"businessActivity"`
	CodiceAteco         string    `json:"codiceAteco"`
	BusinessName        string    `json:"businessName,omitempty"`
	ExpectedRevenue     float64   `json:"expectedRevenue"`
	HasOtherIncome      bool      `json:"hasOtherIncome"`
	OtherIncomeDetails  string    `json:"otherIncomeDetails,omitempty"`
	HasIdentityDocument bool      `json:"hasIdentityDocument"`
	HasFiscalCode       bool      `json:"hasFiscalCode"`
	AdditionalNotes     string    `json:"additionalNotes,omitempty"`
	SubmittedAt         time.Time `json:"submittedAt"`
}

// User is the account record read and written through the user repository.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Phone        string `json:"phone,omitempty"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`

	RegistrationApprovalStatus ApprovalStatus `json:"registrationApprovalStatus"`
	PivaFormSubmitted          bool           `json:"pivaFormSubmitted"`
	PivaApprovalStatus         ApprovalStatus `json:"pivaApprovalStatus,omitempty"`
	PivaRequest                *PivaRequest   `json:"pivaRequestData,omitempty"`

	SubscriptionStatus           SubscriptionStatus `json:"subscriptionStatus,omitempty"`
	SelectedPlan                 *Plan              `json:"selectedPlan,omitempty"`
	SubscriptionCurrentPeriodEnd time.Time          `json:"subscriptionCurrentPeriodEnd,omitempty"`
	PaymentCustomerID            string             `json:"-"`
	PaymentSubscriptionID        string             `json:"-"`

	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	TwoFactorSecret  string `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewBusinessUser builds a freshly registered account: business role and every
// lifecycle field at its "not yet" value.
func NewBusinessUser(email, name, phone, passwordHash string, now time.Time) *User {
	return &User{
		Email:                      NormalizeEmail(email),
		Name:                       name,
		Phone:                      phone,
		PasswordHash:               passwordHash,
		Role:                       RoleBusiness,
		RegistrationApprovalStatus: ApprovalPending,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
}

// AccountState extracts the fields the view is derived from.
func (u *User) AccountState() AccountState {
	return AccountState{
		Role:                       u.Role,
		RegistrationApprovalStatus: u.RegistrationApprovalStatus,
		PivaFormSubmitted:          u.PivaFormSubmitted,
		PivaApprovalStatus:         u.PivaApprovalStatus,
		SubscriptionStatus:         u.SubscriptionStatus,
	}
}

// View is shorthand for ComputeView(u.AccountState()).
func (u *User) View() Screen {
	return ComputeView(u.AccountState())
}
