package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
// RemainingTime is only set on 429 responses.
type errorResponse struct {
	Error         string `json:"error"`
	RemainingTime *int   `json:"remainingTime,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var rle *domain.RateLimitError
		if errors.As(err, &rle) {
			remaining := rle.RemainingSeconds
			c.Response().Header().Set("Retry-After", strconv.Itoa(remaining))
			_ = c.JSON(http.StatusTooManyRequests, errorResponse{Error: rle.Error(), RemainingTime: &remaining})
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (router 404/405, middleware rejections, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Message
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, domain.ErrTwoFactorSessionInvalid):
		return http.StatusUnauthorized, "Invalid or expired verification session"
	case errors.Is(err, domain.ErrTwoFactorCodeInvalid):
		return http.StatusUnauthorized, "Invalid verification code"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Access forbidden"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "User already exists"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "Action not allowed in the current account state"
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusBadRequest, "Unknown plan"
	case errors.Is(err, domain.ErrPivaNotSubmitted):
		return http.StatusBadRequest, "P.IVA request has not been submitted"
	case errors.Is(err, domain.ErrIncorrectPassword):
		return http.StatusBadRequest, "Current password is incorrect"
	case errors.Is(err, domain.ErrTwoFactorAlreadyEnabled):
		return http.StatusBadRequest, "Two-factor authentication is already enabled"
	case errors.Is(err, domain.ErrTwoFactorNotEnrolled):
		return http.StatusBadRequest, "Two-factor authentication has not been set up"
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("store unavailable")
		return http.StatusServiceUnavailable, "Database connection error"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "Internal server error"
}
