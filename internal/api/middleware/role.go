package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

// UserLookup loads the persisted account. ports.AccountService satisfies it.
type UserLookup interface {
	Me(ctx context.Context, userID string) (*domain.User, error)
}

// CurrentRole replaces the role claim with the role stored on the account, so
// a demotion takes effect before the token expires. It runs between Auth and
// RBAC.
func CurrentRole(users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, _ := c.Get(ContextUserID).(string)
			user, err := users.Me(c.Request().Context(), userID)
			if err != nil {
				return err
			}
			c.Set(ContextRole, user.Role)
			return next(c)
		}
	}
}
