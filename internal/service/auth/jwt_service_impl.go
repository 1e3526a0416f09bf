package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/config"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
)

// minSecretLength is the shortest HS256 secret accepted.
const minSecretLength = 32

// hmacJWTValidator validates HS256 tokens.
type hmacJWTValidator struct {
	signingKey []byte
	issuer     string
	clock      clock.Clock
	clockSkew  time.Duration
}

// jwtCustomClaims defines the structure of JWT claims we use
type jwtCustomClaims struct {
	UserID uuid.UUID `json:"uid"`
	jwt.RegisteredClaims
}

var _ TokenValidator = (*hmacJWTValidator)(nil)

// NewJWTValidator creates a validator for tokens signed with cfg.JWTSecret.
// When cfg.Issuer is set the iss claim must match it.
func NewJWTValidator(cfg config.AuthConfig, clk clock.Clock) (TokenValidator, error) {
	if len(cfg.JWTSecret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	if clk == nil {
		clk = clock.System()
	}

	return &hmacJWTValidator{
		signingKey: []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		clock:      clk,
		clockSkew:  2 * time.Minute,
	}, nil
}

// ValidateToken implements TokenValidator.
func (s *hmacJWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	log := logger.FromContext(ctx)

	if tokenString == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			log.Debug("token validation failed: token expired")
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			log.Debug("token validation failed: token not yet valid")
			return nil, ErrTokenNotYetValid
		default:
			log.Debug("token validation failed",
				slog.String("error", err.Error()),
				slog.String("error_type", fmt.Sprintf("%T", err)))
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*jwtCustomClaims)
	if !ok || !token.Valid {
		log.Debug("token validation failed: invalid claims")
		return nil, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == uuid.Nil {
		parsed, err := uuid.Parse(claims.Subject)
		if err != nil {
			log.Debug("token validation failed: no user identity")
			return nil, ErrInvalidToken
		}
		userID = parsed
	}
	if userID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		UserID:  userID,
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
		ID:      claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
