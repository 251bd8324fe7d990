package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/api/metrics"
	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

const maxCredentialsBody = 16 << 10

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func summarize(u *domain.User) userSummary {
	return userSummary{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func newSessionResponse(s *ports.Session) sessionResponse {
	return sessionResponse{
		Success:   true,
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
		User:      summarize(s.User),
	}
}

// decodeCredentials checks that the body is a JSON object whose email and
// password members are present strings.
func decodeCredentials(r io.Reader) (loginRequest, error) {
	var raw map[string]any
	if err := json.NewDecoder(io.LimitReader(r, maxCredentialsBody)).Decode(&raw); err != nil || raw == nil {
		return loginRequest{}, domain.InvalidRequest("Invalid JSON in request body")
	}

	email, hasEmail := raw["email"]
	pw, hasPassword := raw["password"]
	if !hasEmail || !hasPassword || email == nil || pw == nil || email == "" || pw == "" {
		return loginRequest{}, domain.InvalidRequest("Email and password are required")
	}

	emailStr, ok1 := email.(string)
	pwStr, ok2 := pw.(string)
	if !ok1 || !ok2 {
		return loginRequest{}, domain.InvalidRequest("Email and password must be strings")
	}
	return loginRequest{Email: emailStr, Password: pwStr}, nil
}

func loginOutcome(err error) string {
	var ve *domain.ValidationError
	var rle *domain.RateLimitError
	switch {
	case errors.As(err, &ve):
		return "invalid_request"
	case errors.As(err, &rle):
		return "rate_limited"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}

// Register creates a new business account and signs it in.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}

	session, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.Inc()
	return c.JSON(http.StatusCreated, newSessionResponse(session))
}

// Login authenticates a user. Accounts with a second factor receive a pending
// session id instead of a token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse  "token issued, or twoFactorRequiredResponse when requires2FA is set"
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := decodeCredentials(c.Request().Body)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid_request").Inc()
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), ports.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(loginOutcome(err)).Inc()
		return err
	}

	if res.TwoFactor != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("two_factor_required").Inc()
		return c.JSON(http.StatusOK, twoFactorRequiredResponse{
			Requires2FA:      true,
			UserID:           res.TwoFactor.PendingSessionID,
			PendingSessionID: res.TwoFactor.PendingSessionID,
			ExpiresAt:        res.TwoFactor.ExpiresAt,
			Message:          "Two-factor authentication required",
		})
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, newSessionResponse(res.Session))
}

// VerifyTwoFactor completes a login that is waiting for a second factor.
//
// @Summary      Verify second factor
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      verifyTwoFactorRequest  true  "userId from the login response and the 6-digit code"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login/verify-2fa [post]
func (h *AuthHandler) VerifyTwoFactor(c echo.Context) error {
	var req verifyTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}
	pendingID := req.pendingID()
	if pendingID == "" || req.Token == "" {
		return domain.InvalidRequest("userId and token are required")
	}

	session, err := h.authService.VerifyTwoFactor(c.Request().Context(), pendingID, req.Token)
	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, domain.ErrTwoFactorCodeInvalid):
			result = "invalid_code"
		case errors.Is(err, domain.ErrTwoFactorSessionInvalid):
			result = "invalid_session"
		}
		metrics.TwoFactorVerificationsTotal.WithLabelValues(result).Inc()
		return err
	}

	metrics.TwoFactorVerificationsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, newSessionResponse(session))
}
