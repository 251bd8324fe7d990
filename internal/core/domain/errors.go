package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidFormat      = errors.New("invalid format")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrPlanNotFound       = errors.New("plan not found")
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrPivaNotSubmitted   = errors.New("user has not submitted P.IVA request")

	ErrTwoFactorSessionInvalid = errors.New("invalid or expired verification session")
	ErrTwoFactorCodeInvalid    = errors.New("invalid verification code")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotEnrolled    = errors.New("two-factor authentication not set up")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// ValidationError is a client-correctable input error. Kind is either
// ErrInvalidRequest or ErrInvalidFormat; Message is shown to the caller as is.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return e.Kind }

// InvalidRequest builds a ValidationError for malformed or mistyped input.
func InvalidRequest(msg string) error {
	return &ValidationError{Kind: ErrInvalidRequest, Message: msg}
}

// InvalidFormat builds a ValidationError for well-typed input that fails a
// shape or length rule.
func InvalidFormat(msg string) error {
	return &ValidationError{Kind: ErrInvalidFormat, Message: msg}
}

// RateLimitError is returned when the login rate limiter denies an attempt.
type RateLimitError struct {
	RemainingSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many login attempts. Please try again in %d seconds", e.RemainingSeconds)
}
