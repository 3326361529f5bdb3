package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing the operator's JWT access
// tokens. The service is single-principal: a token proves that its bearer
// presented the configured operator key, nothing more.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the operator.
	// Returns the token string and its expiry, or an error if signing fails.
	GenerateToken(ctx context.Context) (string, time.Time, error)

	// ValidateToken validates the provided access token string and extracts
	// the claims. Returns an error if validation fails (expired, invalid
	// signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the claims carried by an operator access token.
type Claims struct {
	// Subject identifies the principal the token was issued for.
	Subject string `json:"sub,omitempty"`

	// Standard registered JWT claims
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
