package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/api/middleware"
	"github.com/taxflow/taxflow-api/internal/core/domain"
)

// ctxUser extracts the identity injected by the Auth middleware. A missing
// user id means the middleware did not run and is answered with 401.
func ctxUser(c echo.Context) (userID string, role domain.Role, err error) {
	userID, _ = c.Get(middleware.ContextUserID).(string)
	if userID == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	role, _ = c.Get(middleware.ContextRole).(domain.Role)
	return userID, role, nil
}
