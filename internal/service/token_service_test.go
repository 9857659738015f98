package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-replan-api/internal/models"
	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() models.JWTClaims {
	return models.JWTClaims{
		UserID: 42,
		Email:  "ana@example.com",
		Role:   "student",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "accounts",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService("secret", "accounts")

	claims, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, "secret", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService("secret", "accounts")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	otherIssuer := validClaims()
	otherIssuer.Issuer = "elsewhere"
	noUser := validClaims()
	noUser.UserID = 0

	cases := map[string]string{
		"garbage":      "not-a-token",
		"wrong secret": signToken(t, jwt.SigningMethodHS256, "other", validClaims()),
		"wrong method": signToken(t, jwt.SigningMethodHS512, "secret", validClaims()),
		"expired":      signToken(t, jwt.SigningMethodHS256, "secret", expired),
		"wrong issuer": signToken(t, jwt.SigningMethodHS256, "secret", otherIssuer),
		"missing user": signToken(t, jwt.SigningMethodHS256, "secret", noUser),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestTokenServiceWithoutIssuerAcceptsAny(t *testing.T) {
	svc := NewTokenService("secret", "")
	claims := validClaims()
	claims.Issuer = "anyone"

	_, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, "secret", claims))
	assert.NoError(t, err)
}
