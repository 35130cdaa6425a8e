package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "threatforge-gateway"

// Token is a signed, time-boxed credential issued in exchange for a valid
// API key. Tokens are stateless: the server never stores them.
type Token struct {
	AccessToken string
	ExpiresIn   int // seconds until expiry
}

// TokenService exchanges API keys for signed access tokens and verifies them.
// Verification is pure and safe for concurrent use.
type TokenService struct {
	keystore *Keystore
	secret   []byte
	ttl      time.Duration
}

// NewTokenService creates a TokenService signing with secret. Tokens expire
// ttl after issuance; there is no refresh mechanism.
func NewTokenService(ks *Keystore, secret []byte, ttl time.Duration) *TokenService {
	return &TokenService{keystore: ks, secret: secret, ttl: ttl}
}

// Issue validates rawKey and returns a signed HS256 token whose subject is
// the key identifier. Unknown and empty keys fail with ErrInvalidCredential.
func (s *TokenService) Issue(rawKey string) (Token, error) {
	keyID, err := s.keystore.Lookup(rawKey)
	if err != nil {
		return Token{}, err
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   keyID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		AccessToken: signed,
		ExpiresIn:   int(s.ttl.Seconds()),
	}, nil
}

// Verify checks the token's signature and expiry against wall-clock time and
// returns the authenticated identity (the key ID). A token signed with a
// different secret fails with ErrBadSignature; a stale token with
// ErrTokenExpired; a token whose key has since been revoked with
// ErrInvalidCredential.
func (s *TokenService) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil, !token.Valid:
		return "", ErrBadSignature
	}

	if claims.Subject == "" || !s.keystore.Has(claims.Subject) {
		return "", ErrInvalidCredential
	}
	return claims.Subject, nil
}
