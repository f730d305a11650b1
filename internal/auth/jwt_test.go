package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "driver-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	signed := signToken(t, "secret", "driver")

	claims, err := ValidateToken("secret", signed)
	require.NoError(t, err)
	require.Equal(t, "driver", claims.Role)
	require.Equal(t, "driver-1", claims.Subject)

	_, err = ValidateToken("other-secret", signed)
	require.Error(t, err)
}

func TestWSGate(t *testing.T) {
	require.Nil(t, WSGate(""))

	gate := WSGate("secret")
	signed := signToken(t, "secret", "customer")

	r := httptest.NewRequest("GET", "/ws?token="+signed, nil)
	require.NoError(t, gate(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+signed)
	require.NoError(t, gate(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	require.Error(t, gate(r))

	r = httptest.NewRequest("GET", "/ws?token="+signToken(t, "wrong", "customer"), nil)
	require.Error(t, gate(r))
}
