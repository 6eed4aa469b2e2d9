package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"positionledger/src/apperror"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = apperror.New(apperror.KindUnauthorized, "MISSING_TOKEN", "authorization bearer token is required")
	ErrInvalidToken = apperror.New(apperror.KindUnauthorized, "INVALID_TOKEN", "invalid or expired token")
)

// TokenManager issues and validates HS256 access tokens whose subject is the
// user id. Token issuance normally belongs to the identity service; Issue
// exists for the CLI and tests.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

func (m *TokenManager) Issue(userID uint) (string, error) {
	if len(m.secret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}

	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate returns the user id carried by token.
func (m *TokenManager) Validate(token string) (uint, error) {
	if len(m.secret) == 0 {
		return 0, ErrInvalidToken.Withf("token validation is not configured")
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return 0, ErrInvalidToken.Wrap(err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken.Withf("invalid token subject %q", claims.Subject)
	}

	return uint(id), nil
}
