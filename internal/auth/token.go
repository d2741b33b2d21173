package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager signs, verifies and decodes session JWTs. It holds no
// secrets; each call names the secret so access and refresh tokens stay
// on independent keys.
type TokenManager struct {
	purpose string
	now     func() time.Time
}

// NewTokenManager builds a new manager. now may be nil.
func NewTokenManager(purpose string, now func() time.Time) *TokenManager {
	if now == nil {
		now = time.Now
	}
	return &TokenManager{purpose: purpose, now: now}
}

// Claims describes JWT payload.
type Claims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// VerifiedSubject is returned only after signature and expiry checks pass.
type VerifiedSubject struct {
	SubjectID string
	ExpiresAt time.Time
}

// ClaimedSubject is read from a token without any verification. It must
// never be used to authorize a request.
type ClaimedSubject struct {
	SubjectID string
}

// Sign builds and signs a JWT for the subject.
func (tm *TokenManager) Sign(subjectID string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Purpose: tm.purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// Verify validates signature and expiry. An otherwise valid but expired
// token yields ErrTokenExpired; everything else yields ErrTokenInvalid.
func (tm *TokenManager) Verify(tokenStr string, secret []byte) (VerifiedSubject, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(tm.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return VerifiedSubject{}, ErrTokenExpired
		}
		return VerifiedSubject{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return VerifiedSubject{}, ErrTokenInvalid
	}
	if claims.Purpose != tm.purpose || claims.Subject == "" {
		return VerifiedSubject{}, ErrTokenInvalid
	}
	return VerifiedSubject{SubjectID: claims.Subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Decode reads the subject without checking signature or expiry.
func (tm *TokenManager) Decode(tokenStr string) (ClaimedSubject, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return ClaimedSubject{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return ClaimedSubject{}, ErrTokenInvalid
	}
	return ClaimedSubject{SubjectID: claims.Subject}, nil
}

// StripPrefix removes the transport scheme tag. Tokens without it are
// rejected before any cryptographic work.
func StripPrefix(transport, prefix string) (string, error) {
	if !strings.HasPrefix(transport, prefix) {
		return "", ErrInvalidPrefix
	}
	return strings.TrimPrefix(transport, prefix), nil
}
