package auth

import "errors"

// Token validation errors. The API answers all of them with 401 and never
// says which one occurred beyond "expired".
var (
	ErrMissingToken     = errors.New("authentication token is missing")
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrExpiredToken     = errors.New("authentication token has expired")
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")
)
