package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxflow/taxflow-api/internal/core/domain"
)

const testSecret = "test_secret_key_1234567890"

func TestIssuer_IssueAndParse(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)

	tests := []struct {
		name   string
		userID string
		role   domain.Role
	}{
		{name: "business user", userID: "64f1c0ffee", role: domain.RoleBusiness},
		{name: "admin user", userID: "64f1c0ffef", role: domain.RoleAdmin},
		{name: "synetich admin", userID: "64f1c0fff0", role: domain.RoleSynetichAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signed, exp, err := issuer.Issue(tt.userID, tt.role)
			require.NoError(t, err)
			assert.NotEmpty(t, signed)
			assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Second)

			claims, err := issuer.Parse(signed)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.userID, claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
		})
	}
}

func TestIssuer_DefaultTTL(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Hour} {
		assert.Equal(t, 24*time.Hour, NewIssuer(testSecret, ttl).TTL(), ttl)
	}
}

func TestIssuer_ExpiresAfterTTL(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewIssuer(testSecret, time.Hour)
	issuer.now = func() time.Time { return issuedAt }

	signed, exp, err := issuer.Issue("u1", domain.RoleBusiness)
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), exp)

	issuer.now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	_, err = issuer.Parse(signed)
	require.NoError(t, err)

	issuer.now = func() time.Time { return issuedAt.Add(61 * time.Minute) }
	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_ParseRejects(t *testing.T) {
	issuer := NewIssuer(testSecret, time.Hour)
	valid, _, err := issuer.Issue("u1", domain.RoleBusiness)
	require.NoError(t, err)

	past := NewIssuer(testSecret, time.Hour)
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, expiredAt, err := past.Issue("u1", domain.RoleBusiness)
	require.NoError(t, err)
	require.True(t, expiredAt.Before(time.Now()), "token must already be expired")

	wrongSecret, _, err := NewIssuer("another_secret", time.Hour).Issue("u1", domain.RoleBusiness)
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "u1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"userId": "u1",
		"exp":    time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u1",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "invalid.token.here"},
		{name: "tampered", token: valid + "x"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: wrongSecret},
		{name: "none algorithm", token: noneAlg},
		{name: "other hmac algorithm", token: hs512},
		{name: "missing expiry", token: noExpiry},
		{name: "missing user id", token: noUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := issuer.Parse(tt.token)
			assert.Nil(t, claims)
			assert.True(t, errors.Is(err, ErrInvalidToken), "expected ErrInvalidToken, got %v", err)
		})
	}
}
