package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
	"github.com/taxflow/taxflow-api/internal/pkg/token"
)

type loginFunc func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)

func (f loginFunc) Register(context.Context, ports.RegisterInput) (*ports.Session, error) {
	return nil, errors.New("not implemented")
}

func (f loginFunc) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return f(ctx, in)
}

func (f loginFunc) VerifyTwoFactor(context.Context, string, string) (*ports.Session, error) {
	return nil, domain.ErrTwoFactorSessionInvalid
}

type meFunc func(ctx context.Context, userID string) (*domain.User, error)

func (f meFunc) Me(ctx context.Context, userID string) (*domain.User, error) { return f(ctx, userID) }

func (f meFunc) ChangePassword(context.Context, ports.ChangePasswordInput) error { return nil }

func (f meFunc) SubmitPivaRequest(context.Context, string, domain.PivaRequest) (*domain.User, error) {
	return nil, domain.ErrInvalidTransition
}

const testSecret = "router-test-secret"

func newTestRouter(t *testing.T, auth ports.AuthService, accounts ports.AccountService) (*echo.Echo, *token.Issuer) {
	t.Helper()
	tokens := token.NewIssuer(testSecret, time.Hour)
	e := NewRouter(Dependencies{
		Auth:            auth,
		Accounts:        accounts,
		Tokens:          tokens,
		WebhookSecret:   "whsec",
		Log:             zerolog.Nop(),
		MetricsRegistry: prometheus.NewRegistry(),
	})
	return e, tokens
}

func do(e *echo.Echo, method, target, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRouter_LoginRateLimited(t *testing.T) {
	auth := loginFunc(func(context.Context, ports.LoginInput) (*ports.LoginResult, error) {
		return nil, &domain.RateLimitError{RemainingSeconds: 873}
	})
	e, _ := newTestRouter(t, auth, nil)

	rec := do(e, http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret123"}`, "")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "873", rec.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Too many login attempts. Please try again in 873 seconds", body["error"])
	assert.Equal(t, float64(873), body["remainingTime"])
}

func TestRouter_InvalidCredentialsBodyIsUniform(t *testing.T) {
	auth := loginFunc(func(context.Context, ports.LoginInput) (*ports.LoginResult, error) {
		return nil, domain.ErrInvalidCredentials
	})
	e, _ := newTestRouter(t, auth, nil)

	unknown := do(e, http.MethodPost, "/auth/login", `{"email":"ghost@example.com","password":"secret123"}`, "")
	wrong := do(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong-pass"}`, "")

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.String(), wrong.Body.String())
	assert.JSONEq(t, `{"error":"Invalid credentials"}`, unknown.Body.String())
}

func TestRouter_LoginMalformedBody(t *testing.T) {
	e, _ := newTestRouter(t, loginFunc(nil), nil)

	rec := do(e, http.MethodPost, "/auth/login", `{"email":"a@example.com"}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Email and password are required"}`, rec.Body.String())
}

func TestRouter_UserMe(t *testing.T) {
	accounts := meFunc(func(_ context.Context, userID string) (*domain.User, error) {
		if userID == "gone" {
			return nil, domain.ErrUnauthorized
		}
		return &domain.User{ID: userID, Role: domain.RoleBusiness, RegistrationApprovalStatus: domain.ApprovalPending}, nil
	})
	e, tokens := newTestRouter(t, nil, accounts)

	rec := do(e, http.MethodGet, "/user/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Authorization token required"}`, rec.Body.String())

	signed, _, err := tokens.Issue("u-1", domain.RoleBusiness)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/user/me", "", signed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view":"registration_pending"`)

	gone, _, err := tokens.Issue("gone", domain.RoleBusiness)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/user/me", "", gone)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRequiresAdminRole(t *testing.T) {
	stored := map[string]domain.Role{"u-1": domain.RoleBusiness, "a-1": domain.RoleAdmin, "demoted": domain.RoleBusiness}
	accounts := meFunc(func(_ context.Context, userID string) (*domain.User, error) {
		role, ok := stored[userID]
		if !ok {
			return nil, domain.ErrUnauthorized
		}
		return &domain.User{ID: userID, Role: role}, nil
	})
	e, tokens := newTestRouter(t, nil, accounts)

	signed, _, err := tokens.Issue("u-1", domain.RoleBusiness)
	require.NoError(t, err)

	rec := do(e, http.MethodGet, "/admin/plans", "", signed)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"Access forbidden"}`, rec.Body.String())

	admin, _, err := tokens.Issue("a-1", domain.RoleAdmin)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/admin/plans", "", admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	// The token still says admin, the stored account no longer does.
	demoted, _, err := tokens.Issue("demoted", domain.RoleAdmin)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/admin/plans", "", demoted)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	deleted, _, err := tokens.Issue("deleted", domain.RoleAdmin)
	require.NoError(t, err)
	rec = do(e, http.MethodGet, "/admin/plans", "", deleted)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_LoginPreflight(t *testing.T) {
	e, _ := newTestRouter(t, loginFunc(nil), nil)

	for _, path := range []string{"/auth/login", "/auth/login/verify-2fa"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set(echo.HeaderOrigin, "https://app.taxflow.it")
			req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
			req.Header.Set(echo.HeaderAccessControlRequestHeaders, "content-type")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
			assert.Equal(t, "POST, OPTIONS", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
			assert.Equal(t, "Content-Type, Authorization", rec.Header().Get(echo.HeaderAccessControlAllowHeaders))

			bare := do(e, http.MethodOptions, path, "", "")
			assert.Equal(t, http.StatusOK, bare.Code)
		})
	}
}

func TestRouter_LoginResponseCarriesCORS(t *testing.T) {
	auth := loginFunc(func(context.Context, ports.LoginInput) (*ports.LoginResult, error) {
		return nil, domain.ErrInvalidCredentials
	})
	e, _ := newTestRouter(t, auth, nil)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"a@example.com","password":"secret123"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderOrigin, "https://app.taxflow.it")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get(echo.HeaderAccessControlAllowMethods))
}

func TestRouter_VerifyTwoFactorTakesUserID(t *testing.T) {
	e, _ := newTestRouter(t, loginFunc(nil), nil)

	rec := do(e, http.MethodPost, "/auth/login/verify-2fa", `{"userId":"pending-1","token":"123456"}`, "")

	// The stub rejects every session; reaching it shows the body was accepted.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid or expired verification session"}`, rec.Body.String())
}

func TestRouter_WebhookRejectsUnsigned(t *testing.T) {
	e, _ := newTestRouter(t, nil, nil)

	rec := do(e, http.MethodPost, "/webhooks/payments", `{"id":"evt_1","type":"checkout.completed"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	e, _ := newTestRouter(t, nil, nil)

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health/ready", "", "").Code)

	rec := do(e, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "requests_total")
}

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{domain.InvalidFormat("Invalid email format"), http.StatusBadRequest, "Invalid email format"},
		{domain.ErrTwoFactorCodeInvalid, http.StatusUnauthorized, "Invalid verification code"},
		{domain.ErrTwoFactorSessionInvalid, http.StatusUnauthorized, "Invalid or expired verification session"},
		{domain.ErrUserNotFound, http.StatusNotFound, "User not found"},
		{domain.ErrUserExists, http.StatusConflict, "User already exists"},
		{domain.ErrInvalidTransition, http.StatusConflict, "Action not allowed in the current account state"},
		{domain.ErrPlanNotFound, http.StatusBadRequest, "Unknown plan"},
		{domain.ErrIncorrectPassword, http.StatusBadRequest, "Current password is incorrect"},
		{errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "Database connection error"},
		{errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
		{echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"), http.StatusMethodNotAllowed, "Method Not Allowed"},
	}

	handle := NewHTTPErrorHandler(zerolog.Nop())
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			handle(tc.err, c)

			assert.Equal(t, tc.code, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.msg, body["error"])
			assert.NotContains(t, body, "remainingTime")
		})
	}
}
