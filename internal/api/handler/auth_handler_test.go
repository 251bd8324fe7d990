package handler

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

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.Session, error)
	loginFn    func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error)
	verifyFn   func(ctx context.Context, pendingSessionID, code string) (*ports.Session, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	return s.loginFn(ctx, in)
}

func (s *stubAuthService) VerifyTwoFactor(ctx context.Context, pendingSessionID, code string) (*ports.Session, error) {
	return s.verifyFn(ctx, pendingSessionID, code)
}

var testExpiry = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	return resp
}

func wantValidation(t *testing.T, err error, kind error, msg string) {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected kind %v, got %v", kind, ve.Kind)
	}
	if msg != "" && ve.Message != msg {
		t.Fatalf("expected message %q, got %q", msg, ve.Message)
	}
}

func aliceSession() *ports.Session {
	return &ports.Session{
		Token:     "token123",
		ExpiresAt: testExpiry,
		User: &domain.User{
			ID:           "u-1",
			Email:        "alice@example.com",
			Name:         "Alice",
			Role:         domain.RoleBusiness,
			PasswordHash: "$2a$10$hash",
		},
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
			if in.Email != "alice@example.com" || in.Name != "Alice" || in.Phone != "3331234567" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return aliceSession(), nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/register",
		`{"email":"alice@example.com","password":"secret123","name":"Alice","phone":"3331234567"}`)
	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["token"] != "token123" || resp["success"] != true {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["id"] != "u-1" || user["role"] != "business" {
		t.Fatalf("unexpected user payload: %+v", resp["user"])
	}
	if strings.Contains(rec.Body.String(), "hash") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}
}

func TestAuthHandler_Register_UserExists(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
			return nil, domain.ErrUserExists
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/register", `{"email":"bob@example.com","password":"secret123","name":"Bob"}`)
	if err := h.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewAuthHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/auth/register", "not-json")
	wantValidation(t, h.Register(c), domain.ErrInvalidRequest, "Invalid JSON in request body")
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			if in.Email != "alice@example.com" || in.Password != "secret123" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &ports.LoginResult{Session: aliceSession()}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret123"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["token"] != "token123" {
		t.Fatalf("expected token, got %v", resp["token"])
	}
	if resp["expiresAt"] != "2025-03-02T09:00:00Z" {
		t.Fatalf("unexpected expiresAt: %v", resp["expiresAt"])
	}
	if _, ok := resp["requires2FA"]; ok {
		t.Fatalf("requires2FA must not be set on a full session: %+v", resp)
	}
}

func TestAuthHandler_Login_TwoFactorRequired(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			return &ports.LoginResult{TwoFactor: &ports.PendingTwoFactor{
				PendingSessionID: "pending-1",
				UserID:           "u-1",
				ExpiresAt:        testExpiry,
			}}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret123"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["requires2FA"] != true || resp["userId"] != "pending-1" || resp["pendingSessionId"] != "pending-1" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if _, ok := resp["token"]; ok {
		t.Fatalf("token must not be issued before the second factor: %+v", resp)
	}
}

func TestAuthHandler_Login_PassesServiceErrors(t *testing.T) {
	cases := []error{
		domain.ErrInvalidCredentials,
		&domain.RateLimitError{RemainingSeconds: 900},
		domain.ErrStoreUnavailable,
	}
	for _, want := range cases {
		t.Run(want.Error(), func(t *testing.T) {
			e := newEcho()
			stub := &stubAuthService{
				loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
					return nil, want
				},
			}
			h := NewAuthHandler(stub)

			c, rec := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"wrong-pass"}`)
			if err := h.Login(c); !errors.Is(err, want) {
				t.Fatalf("expected %v, got %v", want, err)
			}
			if rec.Body.Len() != 0 {
				t.Fatalf("handler must not write on error, got %s", rec.Body.String())
			}
		})
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	cases := []struct {
		name string
		body string
		msg  string
	}{
		{"not json", "not-json", "Invalid JSON in request body"},
		{"json array", `["alice@example.com"]`, "Invalid JSON in request body"},
		{"json null", `null`, "Invalid JSON in request body"},
		{"missing password", `{"email":"alice@example.com"}`, "Email and password are required"},
		{"missing email", `{"password":"secret123"}`, "Email and password are required"},
		{"null email", `{"email":null,"password":"secret123"}`, "Email and password are required"},
		{"empty password", `{"email":"alice@example.com","password":""}`, "Email and password are required"},
		{"numeric password", `{"email":"alice@example.com","password":123456}`, "Email and password must be strings"},
		{"object email", `{"email":{"a":1},"password":"secret123"}`, "Email and password must be strings"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho()
			stub := &stubAuthService{
				loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
					t.Fatalf("should not be called")
					return nil, nil
				},
			}
			h := NewAuthHandler(stub)

			c, _ := jsonRequest(e, http.MethodPost, "/auth/login", tc.body)
			wantValidation(t, h.Login(c), domain.ErrInvalidRequest, tc.msg)
		})
	}
}

func TestAuthHandler_VerifyTwoFactor_Success(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"userId and token", `{"userId":"pending-1","token":"123456"}`},
		{"explicit pendingSessionId", `{"pendingSessionId":"pending-1","token":"123456"}`},
		{"pendingSessionId wins over userId", `{"pendingSessionId":"pending-1","userId":"stale","token":"123456"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEcho()
			stub := &stubAuthService{
				verifyFn: func(ctx context.Context, pendingSessionID, code string) (*ports.Session, error) {
					if pendingSessionID != "pending-1" || code != "123456" {
						t.Fatalf("unexpected args: %s %s", pendingSessionID, code)
					}
					return aliceSession(), nil
				},
			}
			h := NewAuthHandler(stub)

			c, rec := jsonRequest(e, http.MethodPost, "/auth/login/verify-2fa", tc.body)
			if err := h.VerifyTwoFactor(c); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if resp := decodeBody(t, rec); resp["token"] != "token123" {
				t.Fatalf("expected token, got %+v", resp)
			}
		})
	}
}

func TestAuthHandler_VerifyTwoFactor_AcceptsLoginUserID(t *testing.T) {
	e := newEcho()
	stub := &stubAuthService{
		loginFn: func(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
			return &ports.LoginResult{TwoFactor: &ports.PendingTwoFactor{
				PendingSessionID: "pending-7",
				UserID:           "u-1",
				ExpiresAt:        testExpiry,
			}}, nil
		},
		verifyFn: func(ctx context.Context, pendingSessionID, code string) (*ports.Session, error) {
			if pendingSessionID != "pending-7" {
				t.Fatalf("expected the login userId back, got %q", pendingSessionID)
			}
			return aliceSession(), nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"secret123"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login error: %v", err)
	}
	userID, _ := decodeBody(t, rec)["userId"].(string)

	c, rec = jsonRequest(e, http.MethodPost, "/auth/login/verify-2fa", `{"userId":"`+userID+`","token":"123456"}`)
	if err := h.VerifyTwoFactor(c); err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_VerifyTwoFactor_MissingFields(t *testing.T) {
	for _, body := range []string{`{"userId":"pending-1"}`, `{"token":"123456"}`, `{}`} {
		e := newEcho()
		stub := &stubAuthService{
			verifyFn: func(ctx context.Context, pendingSessionID, code string) (*ports.Session, error) {
				t.Fatalf("should not be called")
				return nil, nil
			},
		}
		h := NewAuthHandler(stub)

		c, _ := jsonRequest(e, http.MethodPost, "/auth/login/verify-2fa", body)
		wantValidation(t, h.VerifyTwoFactor(c), domain.ErrInvalidRequest, "userId and token are required")
	}
}

func TestAuthHandler_VerifyTwoFactor_Rejected(t *testing.T) {
	for _, want := range []error{domain.ErrTwoFactorCodeInvalid, domain.ErrTwoFactorSessionInvalid} {
		e := newEcho()
		stub := &stubAuthService{
			verifyFn: func(ctx context.Context, pendingSessionID, code string) (*ports.Session, error) {
				return nil, want
			},
		}
		h := NewAuthHandler(stub)

		c, _ := jsonRequest(e, http.MethodPost, "/auth/login/verify-2fa", `{"userId":"pending-1","token":"000000"}`)
		if err := h.VerifyTwoFactor(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}
