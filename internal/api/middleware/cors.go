package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var (
	loginAllowMethods = strings.Join([]string{http.MethodPost, http.MethodOptions}, ", ")
	loginAllowHeaders = strings.Join([]string{echo.HeaderContentType, echo.HeaderAuthorization}, ", ")
)

// LoginCORS sets the CORS headers of the sign-in endpoints: any origin, POST
// and OPTIONS only. The global CORS middleware must skip these routes.
func LoginCORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowMethods, loginAllowMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, loginAllowHeaders)
			return next(c)
		}
	}
}

// Preflight answers an OPTIONS request with 200 and no body.
func Preflight(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
