package handler

import (
	"time"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

// errorResponse documents the error envelope for swagger only. The envelope
// actually written is api.errorResponse; keep the two in step.
type errorResponse struct {
	Error         string `json:"error"`
	RemainingTime int    `json:"remainingTime,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// userSummary is the user snapshot embedded in token responses.
type userSummary struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

type sessionResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      userSummary `json:"user"`
}

// twoFactorRequiredResponse hands out the pending-session id as userId, which
// is what the verify step expects back. pendingSessionId repeats it.
type twoFactorRequiredResponse struct {
	Requires2FA      bool      `json:"requires2FA"`
	UserID           string    `json:"userId"`
	PendingSessionID string    `json:"pendingSessionId"`
	ExpiresAt        time.Time `json:"expiresAt"`
	Message          string    `json:"message"`
}

type verifyTwoFactorRequest struct {
	UserID           string `json:"userId"`
	PendingSessionID string `json:"pendingSessionId,omitempty"`
	Token            string `json:"token"`
}

// pendingID prefers the explicit pendingSessionId and falls back to userId.
func (r verifyTwoFactorRequest) pendingID() string {
	if r.PendingSessionID != "" {
		return r.PendingSessionID
	}
	return r.UserID
}

// --- User ---

type meResponse struct {
	Success bool          `json:"success"`
	User    *domain.User  `json:"user"`
	View    domain.Screen `json:"view"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type pivaIntakeRequest struct {
	HasExistingPiva     bool    `json:"hasExistingPiva"`
	ExistingPivaNumber  string  `json:"existingPivaNumber"  validate:"omitempty,len=11,numeric"`
	FirstName           string  `json:"firstName"           validate:"required"`
	LastName            string  `json:"lastName"            validate:"required"`
	DateOfBirth         string  `json:"dateOfBirth"         validate:"required,datetime=2006-01-02"`
	PlaceOfBirth        string  `json:"placeOfBirth"        validate:"required"`
	FiscalCode          string  `json:"fiscalCode"          validate:"required,len=16,alphanum"`
	ResidenceAddress    string  `json:"residenceAddress"    validate:"required"`
	ResidenceCity       string  `json:"residenceCity"       validate:"required"`
	ResidenceCAP        string  `json:"residenceCAP"        validate:"required,len=5,numeric"`
	ResidenceProvince   string  `json:"residenceProvince"   validate:"required,len=2"`
	BusinessActivity    string  `json:"businessActivity"    validate:"required"`
	CodiceAteco         string  `json:"codiceAteco"`
	BusinessName        string  `json:"businessName"`
	ExpectedRevenue     float64 `json:"expectedRevenue"     validate:"gte=0"`
	HasOtherIncome      bool    `json:"hasOtherIncome"`
	OtherIncomeDetails  string  `json:"otherIncomeDetails"`
	HasIdentityDocument bool    `json:"hasIdentityDocument"`
	HasFiscalCode       bool    `json:"hasFiscalCode"`
	AdditionalNotes     string  `json:"additionalNotes"     validate:"max=2000"`
}

func (r pivaIntakeRequest) toDomain() domain.PivaRequest {
	return domain.PivaRequest{
		HasExistingPiva:     r.HasExistingPiva,
		ExistingPivaNumber:  r.ExistingPivaNumber,
		FirstName:           r.FirstName,
		LastName:            r.LastName,
		DateOfBirth:         r.DateOfBirth,
		PlaceOfBirth:        r.PlaceOfBirth,
		FiscalCode:          r.FiscalCode,
		ResidenceAddress:    r.ResidenceAddress,
		ResidenceCity:       r.ResidenceCity,
		ResidenceCAP:        r.ResidenceCAP,
		ResidenceProvince:   r.ResidenceProvince,
		BusinessActivity:    r.BusinessActivity,
		CodiceAteco:         r.CodiceAteco,
		BusinessName:        r.BusinessName,
		ExpectedRevenue:     r.ExpectedRevenue,
		HasOtherIncome:      r.HasOtherIncome,
		OtherIncomeDetails:  r.OtherIncomeDetails,
		HasIdentityDocument: r.HasIdentityDocument,
		HasFiscalCode:       r.HasFiscalCode,
		AdditionalNotes:     r.AdditionalNotes,
	}
}

type userResponse struct {
	Success bool          `json:"success"`
	User    *domain.User  `json:"user"`
	View    domain.Screen `json:"view"`
}

// --- Admin ---

type listUsersResponse struct {
	Success bool           `json:"success"`
	Count   int            `json:"count"`
	Users   []*domain.User `json:"users"`
}

type registrationDecisionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

type approvePivaRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

type plansResponse struct {
	Success bool          `json:"success"`
	Plans   []domain.Plan `json:"plans"`
}

// --- Two-factor enrolment ---

type enableTwoFactorResponse struct {
	Success    bool   `json:"success"`
	Secret     string `json:"secret"`
	OtpauthURL string `json:"otpauthUrl"`
}

type confirmTwoFactorRequest struct {
	Token string `json:"token" validate:"required"`
}

type disableTwoFactorRequest struct {
	Password string `json:"password"`
}

type twoFactorStatusResponse struct {
	Success bool `json:"success"`
	Enabled bool `json:"enabled"`
}

// --- Webhook ---

type paymentEventData struct {
	UserID           string `json:"userId"`
	CustomerID       string `json:"customerId"`
	SubscriptionID   string `json:"subscriptionId"`
	Status           string `json:"status"`
	PlanID           string `json:"planId"`
	CurrentPeriodEnd int64  `json:"currentPeriodEnd"`
}

type paymentEventRequest struct {
	ID   string           `json:"id"   validate:"required"`
	Type string           `json:"type" validate:"required"`
	Data paymentEventData `json:"data"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome"`
}
