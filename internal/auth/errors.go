package auth

import "errors"

// Sentinel errors for credential and token failures. Credential failures are
// deliberately uniform so callers cannot distinguish malformed from unknown keys.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTokenExpired      = errors.New("token expired")
	ErrBadSignature      = errors.New("invalid token signature")
)
