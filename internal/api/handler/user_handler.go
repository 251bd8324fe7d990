package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

// UserHandler serves the signed-in user's own account.
type UserHandler struct {
	accounts ports.AccountService
}

func NewUserHandler(accounts ports.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// Me returns the authoritative user record and the screen it maps to.
//
// @Summary      Current user
// @Tags         user
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  errorResponse
// @Router       /user/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	user, err := h.accounts.Me(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{Success: true, User: user, View: user.View()})
}

// ChangePassword replaces the password after checking the current one.
//
// @Summary      Change password
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  successResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /user/password [post]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}

	err = h.accounts.ChangePassword(c.Request().Context(), ports.ChangePasswordInput{
		UserID:          userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, successResponse{Success: true, Message: "Password updated successfully"})
}

// SubmitPivaRequest stores the P.IVA intake questionnaire.
//
// @Summary      Submit P.IVA intake
// @Tags         user
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      pivaIntakeRequest  true  "Questionnaire"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /user/piva-request [post]
func (h *UserHandler) SubmitPivaRequest(c echo.Context) error {
	userID, _, err := ctxUser(c)
	if err != nil {
		return err
	}

	var req pivaIntakeRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}
	if err := c.Validate(&req); err != nil {
		return domain.InvalidFormat(err.Error())
	}

	user, err := h.accounts.SubmitPivaRequest(c.Request().Context(), userID, req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userResponse{Success: true, User: user, View: user.View()})
}
