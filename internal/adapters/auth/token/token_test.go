package token

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func fixedNow(t time.Time) Option {
	return WithNow(func() time.Time { return t })
}

func TestAuthenticator_IssueAndAuthenticate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	a, err := New(testSecret, "gestion-presence", fixedNow(now))
	require.NoError(t, err)

	raw, err := a.Issue("user-1", time.Hour)
	require.NoError(t, err)

	subject, err := a.Authenticate(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", subject)
}

func TestAuthenticator_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	a, err := New(testSecret, "gestion-presence", fixedNow(now))
	require.NoError(t, err)

	sign := func(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "gestion-presence",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		}
	}

	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	otherIssuer := valid()
	otherIssuer.Issuer = "someone-else"
	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	noSubject := valid()
	noSubject.Subject = ""

	tests := []struct {
		name string
		raw  string
	}{
		{name: "garbage", raw: "not-a-token"},
		{name: "expired", raw: sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{name: "other issuer", raw: sign(t, jwt.SigningMethodHS256, []byte(testSecret), otherIssuer)},
		{name: "no expiry", raw: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry)},
		{name: "no subject", raw: sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject)},
		{name: "wrong secret", raw: sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-xx"), valid())},
		{name: "other algorithm", raw: sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid())},
		{name: "unsigned", raw: sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := a.Authenticate(context.Background(), tt.raw)
			assert.Error(t, err)
			assert.Empty(t, subject)
		})
	}
}

func TestNew_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := New("", "gestion-presence")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestAuthenticator_IssueRequiresSubject(t *testing.T) {
	t.Parallel()

	a, err := New(testSecret, "")
	require.NoError(t, err)
	_, err = a.Issue("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSubject)
}
