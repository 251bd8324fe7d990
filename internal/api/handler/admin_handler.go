package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/api/metrics"
	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

// AdminHandler exposes consultant decisions. Routes are guarded by RBAC.
type AdminHandler struct {
	admin ports.AdminService
}

func NewAdminHandler(admin ports.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// ListUsers returns accounts filtered by approval status.
//
// @Summary      List users
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        role                query     string  false  "business, admin or synetich_admin"
// @Param        registrationStatus  query     string  false  "pending, approved or rejected"
// @Param        pivaStatus          query     string  false  "pending, approved or rejected"
// @Param        limit               query     int     false  "max results (default 50, max 200)"
// @Success      200  {object}  listUsersResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	filter := ports.ListUsersFilter{
		Role:               domain.Role(c.QueryParam("role")),
		RegistrationStatus: domain.ApprovalStatus(c.QueryParam("registrationStatus")),
		PivaStatus:         domain.ApprovalStatus(c.QueryParam("pivaStatus")),
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return domain.InvalidFormat("role must be one of: business admin synetich_admin")
	}
	if filter.RegistrationStatus != "" && !filter.RegistrationStatus.Valid() {
		return domain.InvalidFormat("registrationStatus must be one of: pending approved rejected")
	}
	if filter.PivaStatus != "" && !filter.PivaStatus.Valid() {
		return domain.InvalidFormat("pivaStatus must be one of: pending approved rejected")
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return domain.InvalidFormat("limit must be a positive integer")
		}
		filter.Limit = n
	}

	users, err := h.admin.ListUsers(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listUsersResponse{Success: true, Count: len(users), Users: users})
}

// DecideRegistration approves or rejects a new account.
//
// @Summary      Decide registration
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                       true  "User ID"
// @Param        body  body      registrationDecisionRequest  true  "Decision"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /admin/users/{id}/registration [post]
func (h *AdminHandler) DecideRegistration(c echo.Context) error {
	var req registrationDecisionRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}
	if err := c.Validate(&req); err != nil {
		return domain.InvalidFormat(err.Error())
	}

	user, err := h.admin.DecideRegistration(c.Request().Context(), c.Param("id"), domain.ApprovalStatus(req.Status))
	if err != nil {
		return err
	}

	metrics.ApprovalDecisionsTotal.WithLabelValues("registration", req.Status).Inc()
	return c.JSON(http.StatusOK, userResponse{Success: true, User: user, View: user.View()})
}

// ApprovePiva approves a submitted intake and assigns a plan.
//
// @Summary      Approve P.IVA request
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "User ID"
// @Param        body  body      approvePivaRequest  true  "Plan"
// @Success      200   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /admin/users/{id}/piva/approve [post]
func (h *AdminHandler) ApprovePiva(c echo.Context) error {
	var req approvePivaRequest
	if err := c.Bind(&req); err != nil {
		return domain.InvalidRequest("Invalid JSON in request body")
	}
	if err := c.Validate(&req); err != nil {
		return domain.InvalidFormat(err.Error())
	}

	user, err := h.admin.ApprovePiva(c.Request().Context(), c.Param("id"), req.PlanID)
	if err != nil {
		return err
	}

	metrics.ApprovalDecisionsTotal.WithLabelValues("piva", string(domain.ApprovalApproved)).Inc()
	return c.JSON(http.StatusOK, userResponse{Success: true, User: user, View: user.View()})
}

// RejectPiva rejects a submitted intake.
//
// @Summary      Reject P.IVA request
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  userResponse
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /admin/users/{id}/piva/reject [post]
func (h *AdminHandler) RejectPiva(c echo.Context) error {
	user, err := h.admin.RejectPiva(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}

	metrics.ApprovalDecisionsTotal.WithLabelValues("piva", string(domain.ApprovalRejected)).Inc()
	return c.JSON(http.StatusOK, userResponse{Success: true, User: user, View: user.View()})
}

// Plans lists the subscription plans an intake can be approved with.
//
// @Summary      Subscription plans
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  plansResponse
// @Router       /admin/plans [get]
func (h *AdminHandler) Plans(c echo.Context) error {
	return c.JSON(http.StatusOK, plansResponse{Success: true, Plans: domain.Plans()})
}
