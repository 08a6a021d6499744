package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	secret := []byte("s3cr3t")
	tokens := NewTokenManager(secret, "ringstore", time.Hour)
	authenticator := NewJWTAuthenticator(secret, "ringstore")

	jwtToken, err := tokens.GenerateJWT("op-1", []string{"manifest:read"})
	require.NoError(t, err)

	claims, err := authenticator.ValidateToken(context.Background(), jwtToken)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, []string{"manifest:read"}, claims.Permissions)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	secret := []byte("s3cr3t")
	tokens := NewTokenManager(secret, "issuer-a", time.Hour)
	authenticator := NewJWTAuthenticator(secret, "issuer-b")

	jwtToken, err := tokens.GenerateJWT("op-1", nil)
	require.NoError(t, err)

	_, err = authenticator.ValidateToken(context.Background(), jwtToken)
	assert.Error(t, err)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	tokens := NewTokenManager([]byte("secret-a"), "ringstore", time.Hour)
	authenticator := NewJWTAuthenticator([]byte("secret-b"), "ringstore")

	jwtToken, err := tokens.GenerateJWT("op-1", nil)
	require.NoError(t, err)

	_, err = authenticator.ValidateToken(context.Background(), jwtToken)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	secret := []byte("s3cr3t")
	tokens := NewTokenManager(secret, "ringstore", -time.Minute)
	authenticator := NewJWTAuthenticator(secret, "ringstore")

	jwtToken, err := tokens.GenerateJWT("op-1", nil)
	require.NoError(t, err)

	_, err = authenticator.ValidateToken(context.Background(), jwtToken)
	assert.Error(t, err)
}

func TestAuthorizeWildcardPermission(t *testing.T) {
	authenticator := NewJWTAuthenticator([]byte("s"), "ringstore")
	claims := &Claims{OperatorID: "op-1", Permissions: []string{"*"}}
	assert.NoError(t, authenticator.Authorize(context.Background(), claims, "compact", "run"))
}

func TestAuthorizeSpecificPermission(t *testing.T) {
	authenticator := NewJWTAuthenticator([]byte("s"), "ringstore")
	claims := &Claims{OperatorID: "op-1", Permissions: []string{"compact:run"}}
	assert.NoError(t, authenticator.Authorize(context.Background(), claims, "compact", "run"))
	assert.Error(t, authenticator.Authorize(context.Background(), claims, "repair", "terminate"))
}

func TestRefreshTokenPreservesClaims(t *testing.T) {
	secret := []byte("s3cr3t")
	tokens := NewTokenManager(secret, "ringstore", time.Hour)
	authenticator := NewJWTAuthenticator(secret, "ringstore")

	original := &Claims{OperatorID: "op-1", Permissions: []string{"*"}}
	refreshed, err := tokens.RefreshToken(original)
	require.NoError(t, err)

	claims, err := authenticator.ValidateToken(context.Background(), refreshed)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
}

func TestMiddlewareExtractsBearerPrefix(t *testing.T) {
	secret := []byte("s3cr3t")
	tokens := NewTokenManager(secret, "ringstore", time.Hour)
	authenticator := NewJWTAuthenticator(secret, "ringstore")
	middleware := NewAuthMiddleware(authenticator)

	jwtToken, err := tokens.GenerateJWT("op-1", nil)
	require.NoError(t, err)

	claims, err := middleware.ExtractAndValidateToken(context.Background(), "Bearer "+jwtToken)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
}

func TestMiddlewareRejectsEmptyToken(t *testing.T) {
	authenticator := NewJWTAuthenticator([]byte("s"), "ringstore")
	middleware := NewAuthMiddleware(authenticator)

	_, err := middleware.ExtractAndValidateToken(context.Background(), "")
	assert.Error(t, err)
}
