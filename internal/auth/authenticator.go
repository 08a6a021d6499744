// Package auth gates the operator HTTP surface (internal/api/operator)
// with bearer JWTs: one operator identity, one set of permission
// strings, no per-tenant API-key surface.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator validates operator bearer tokens and authorizes actions.
type Authenticator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	Authorize(ctx context.Context, claims *Claims, resource string, action string) error
}

// Claims is the JWT payload for an operator session: who issued the
// request and what compact/repair/manifest actions they may take.
type Claims struct {
	OperatorID  string   `json:"operator_id"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTAuthenticator implements Authenticator using HMAC-signed JWTs.
type JWTAuthenticator struct {
	secretKey []byte
	issuer    string
}

// NewJWTAuthenticator creates a new JWT-based authenticator.
func NewJWTAuthenticator(secretKey []byte, issuer string) *JWTAuthenticator {
	return &JWTAuthenticator{secretKey: secretKey, issuer: issuer}
}

// ValidateToken validates a JWT token and returns the claims.
func (ja *JWTAuthenticator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ja.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}
	if claims.Issuer != ja.issuer {
		return nil, fmt.Errorf("invalid issuer")
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, fmt.Errorf("token expired")
	}
	return claims, nil
}

// Authorize checks claims for a "resource:action" permission, or "*".
func (ja *JWTAuthenticator) Authorize(ctx context.Context, claims *Claims, resource string, action string) error {
	required := fmt.Sprintf("%s:%s", resource, action)
	for _, permission := range claims.Permissions {
		if permission == required || permission == "*" {
			return nil
		}
	}
	return fmt.Errorf("insufficient permissions for %s on %s", action, resource)
}

// AuthMiddleware extracts and validates a bearer token ahead of a gin handler.
type AuthMiddleware struct {
	authenticator Authenticator
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(authenticator Authenticator) *AuthMiddleware {
	return &AuthMiddleware{authenticator: authenticator}
}

// ExtractAndValidateToken strips an optional "Bearer " prefix and validates.
func (am *AuthMiddleware) ExtractAndValidateToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("missing authentication token")
	}
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}
	return am.authenticator.ValidateToken(ctx, token)
}
