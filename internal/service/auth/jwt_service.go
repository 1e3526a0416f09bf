// Package auth turns bearer tokens into user identities. Tokens are issued
// elsewhere; this service only validates them.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TokenValidator validates access tokens.
type TokenValidator interface {
	// ValidateToken checks the signature and time claims of tokenString and
	// returns its claims. Every failure is one of the errors in this package.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims is the identity carried by a validated token.
type Claims struct {
	// UserID comes from the uid claim, or from sub when uid is absent.
	UserID    uuid.UUID
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
