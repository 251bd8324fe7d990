package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

// SecurityHandler manages second-factor enrolment for the signed-in user.
type SecurityHandler struct {
	twoFactor ports.TwoFactorService
}

func NewSecurityHandler(twoFactor ports.TwoFactorService) *SecurityHandler {
	return &SecurityHandler{twoFactor: twoFactor}
}

// EnableTwoFactor starts enrolment and returns the secret to scan.
//
// @Summary      Start 2FA enrolment
// @Tags         security
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  enableTwoFactorResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Router       /security/2fa/enable [post]
func (h *SecurityHandler) EnableTwoFactor(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	enrollment, err := h.twoFactor.Enable(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, enableTwoFactorResponse{
		Success:    true,
		Secret:     enrollment.Secret,
		OtpauthURL: enrollment.OtpauthURL,
	})
}

// ConfirmTwoFactor activates enrolment once a code from the new secret matches.
//
// @Summary      Confirm 2FA enrolment
// @Tags         security
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      confirmTwoFactorRequest  true  "6-digit code"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /security/2fa/verify [post]
func (h *SecurityHandler) ConfirmTwoFactor(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req confirmTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}
	if err := c.Validate(&req); err != nil {
		return domain.InvalidRequest(err.Error())
	}

	if err := h.twoFactor.Confirm(c.Request().Context(), userID, req.Token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Two-factor authentication enabled"})
}

// DisableTwoFactor turns the second factor off after a password check.
//
// @Summary      Disable 2FA
// @Tags         security
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      disableTwoFactorRequest  true  "Current password"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /security/2fa/disable [post]
func (h *SecurityHandler) DisableTwoFactor(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req disableTwoFactorRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}

	if err := h.twoFactor.Disable(c.Request().Context(), userID, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Two-factor authentication disabled"})
}

// TwoFactorStatus reports whether the second factor is active.
//
// @Summary      2FA status
// @Tags         security
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  twoFactorStatusResponse
// @Failure      401  {object}  errorResponse
// @Router       /security/2fa/status [get]
func (h *SecurityHandler) TwoFactorStatus(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	enabled, err := h.twoFactor.Status(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, twoFactorStatusResponse{Success: true, Enabled: enabled})
}
