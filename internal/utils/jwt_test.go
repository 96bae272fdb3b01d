package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndExtract(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := svc.ExtractUserID(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestExtractUserIDWrongSecret(t *testing.T) {
	svc := NewJWTService("test-secret")
	otro := NewJWTService("otro-secret")

	token, err := svc.GenerateToken(42)
	require.NoError(t, err)

	_, err = otro.ExtractUserID(token)
	require.Error(t, err)
}

func TestExtractUserIDMalformed(t *testing.T) {
	svc := NewJWTService("test-secret")

	_, err := svc.ExtractUserID("not-a-token")
	require.Error(t, err)
}

func TestExtractUserIDMissingClaim(t *testing.T) {
	// Токен подписан верным секретом, но без user_id
	claims := jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	svc := NewJWTService("test-secret")
	_, err = svc.ExtractUserID(token)
	require.Error(t, err)
}

func TestExtractUserIDStringClaim(t *testing.T) {
	// user_id может прийти строкой от старых клиентов
	claims := jwt.MapClaims{
		"user_id": "77",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	svc := NewJWTService("test-secret")
	userID, err := svc.ExtractUserID(token)
	require.NoError(t, err)
	require.Equal(t, int64(77), userID)
}

func TestExtractUserIDExpired(t *testing.T) {
	claims := jwt.MapClaims{
		"user_id": int64(42),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	svc := NewJWTService("test-secret")
	_, err = svc.ExtractUserID(token)
	require.Error(t, err)
}
