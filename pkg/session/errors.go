package session

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized matches any 401 from the API.
	ErrUnauthorized = errors.New("session: unauthorized")
	ErrNotSignedIn  = errors.New("session: not signed in")
	ErrInvalidCode  = errors.New("session: verification code must be 6 digits")
)

// APIError is a non-2xx response decoded from the {"error": ...} envelope.
type APIError struct {
	StatusCode int
	Message    string
	// RetryAfter is set on 429 responses, in seconds.
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("session: api status %d", e.StatusCode)
	}
	return fmt.Sprintf("session: api status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}
