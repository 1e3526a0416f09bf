package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/config"
)

// TestSecret is an HS256 secret long enough for NewJWTValidator.
const TestSecret = "test-jwt-secret-that-is-32-chars-long"

// TestAuthConfig returns an AuthConfig that signs with TestSecret.
func TestAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecret: TestSecret}
}

// SignTestToken returns an HS256 token for userID issued at issuedAt and
// valid for ttl. A negative ttl yields an expired token.
func SignTestToken(t testing.TB, secret string, userID uuid.UUID, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

// TestAuthHeader is SignTestToken with TestSecret, a one hour lifetime and
// the Bearer prefix.
func TestAuthHeader(t testing.TB, userID uuid.UUID, now time.Time) string {
	t.Helper()
	return "Bearer " + SignTestToken(t, TestSecret, userID, now, time.Hour)
}
