package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/taxflow/taxflow-api/internal/core/domain"
	"github.com/taxflow/taxflow-api/internal/core/ports"
)

type stubTwoFactorService struct {
	enableFn  func(ctx context.Context, userID string) (*ports.TwoFactorEnrollment, error)
	confirmFn func(ctx context.Context, userID, code string) error
	disableFn func(ctx context.Context, userID, password string) error
	statusFn  func(ctx context.Context, userID string) (bool, error)
}

func (s *stubTwoFactorService) Enable(ctx context.Context, userID string) (*ports.TwoFactorEnrollment, error) {
	return s.enableFn(ctx, userID)
}

func (s *stubTwoFactorService) Confirm(ctx context.Context, userID, code string) error {
	return s.confirmFn(ctx, userID, code)
}

func (s *stubTwoFactorService) Disable(ctx context.Context, userID, password string) error {
	return s.disableFn(ctx, userID, password)
}

func (s *stubTwoFactorService) Status(ctx context.Context, userID string) (bool, error) {
	return s.statusFn(ctx, userID)
}

func TestSecurityHandler_EnableTwoFactor(t *testing.T) {
	e := newEcho()
	stub := &stubTwoFactorService{
		enableFn: func(ctx context.Context, userID string) (*ports.TwoFactorEnrollment, error) {
			return &ports.TwoFactorEnrollment{
				Secret:     "JBSWY3DPEHPK3PXP",
				OtpauthURL: "otpauth://totp/TaxFlow:alice@example.com?secret=JBSWY3DPEHPK3PXP",
			}, nil
		},
	}
	h := NewSecurityHandler(stub)

	c, rec := jsonRequest(e, http.MethodPost, "/security/2fa/enable", "")
	signIn(c, "u-1", domain.RoleBusiness)
	if err := h.EnableTwoFactor(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if resp := decodeBody(t, rec); resp["secret"] != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestSecurityHandler_ConfirmTwoFactor(t *testing.T) {
	e := newEcho()
	stub := &stubTwoFactorService{
		confirmFn: func(ctx context.Context, userID, code string) error {
			if code != "123456" {
				return domain.ErrTwoFactorCodeInvalid
			}
			return nil
		},
	}
	h := NewSecurityHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/security/2fa/verify", `{"token":"123456"}`)
	signIn(c, "u-1", domain.RoleBusiness)
	if err := h.ConfirmTwoFactor(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/security/2fa/verify", `{"token":"654321"}`)
	signIn(c, "u-1", domain.RoleBusiness)
	if err := h.ConfirmTwoFactor(c); !errors.Is(err, domain.ErrTwoFactorCodeInvalid) {
		t.Fatalf("expected ErrTwoFactorCodeInvalid, got %v", err)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/security/2fa/verify", `{}`)
	signIn(c, "u-1", domain.RoleBusiness)
	wantValidation(t, h.ConfirmTwoFactor(c), domain.ErrInvalidRequest, "token is required")
}

func TestSecurityHandler_DisableAndStatus(t *testing.T) {
	e := newEcho()
	enabled := true
	stub := &stubTwoFactorService{
		disableFn: func(ctx context.Context, userID, password string) error {
			if password != "secret123" {
				return domain.ErrIncorrectPassword
			}
			enabled = false
			return nil
		},
		statusFn: func(ctx context.Context, userID string) (bool, error) {
			return enabled, nil
		},
	}
	h := NewSecurityHandler(stub)

	c, _ := jsonRequest(e, http.MethodPost, "/security/2fa/disable", `{"password":"nope"}`)
	signIn(c, "u-1", domain.RoleBusiness)
	if err := h.DisableTwoFactor(c); !errors.Is(err, domain.ErrIncorrectPassword) {
		t.Fatalf("expected ErrIncorrectPassword, got %v", err)
	}

	c, _ = jsonRequest(e, http.MethodPost, "/security/2fa/disable", `{"password":"secret123"}`)
	signIn(c, "u-1", domain.RoleBusiness)
	if err := h.DisableTwoFactor(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	c, rec := jsonRequest(e, http.MethodGet, "/security/2fa/status", "")
	signIn(c, "u-1", domain.RoleBusiness)
	if err := h.TwoFactorStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if resp := decodeBody(t, rec); resp["enabled"] != false {
		t.Fatalf("expected disabled, got %+v", resp)
	}
}
