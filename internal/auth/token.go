package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenManager issues and refreshes operator session tokens.
type TokenManager struct {
	secretKey  []byte
	issuer     string
	defaultTTL time.Duration
}

// NewTokenManager creates a new token manager.
func NewTokenManager(secretKey []byte, issuer string, defaultTTL time.Duration) *TokenManager {
	return &TokenManager{secretKey: secretKey, issuer: issuer, defaultTTL: defaultTTL}
}

// GenerateJWT creates a signed token for operatorID with the given permissions.
func (tm *TokenManager) GenerateJWT(operatorID string, permissions []string) (string, error) {
	now := time.Now()
	claims := &Claims{
		OperatorID:  operatorID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   operatorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.defaultTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// RefreshToken reissues a token from existing valid claims with fresh timestamps.
func (tm *TokenManager) RefreshToken(existingClaims *Claims) (string, error) {
	now := time.Now()
	newClaims := &Claims{
		OperatorID:  existingClaims.OperatorID,
		Permissions: existingClaims.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			Subject:   existingClaims.OperatorID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.defaultTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, newClaims)
	return token.SignedString(tm.secretKey)
}
