package stubapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessClaims are embedded in stub access tokens.
type accessClaims struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	UserName  string `json:"name"`
	UserRole  string `json:"role"`
	jwt.RegisteredClaims
}

var errEmptySubject = errors.New("stub.jwt.mint: subject must be non-empty")

// mintAccessJWT creates a signed HS256 access token for a user.
func mintAccessJWT(clock Clock, userID string, userEmail string, userName string, userRole string, configuration Config) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errEmptySubject
	}
	issuedAt := clock.Now()
	expiresAt := issuedAt.Add(configuration.AccessTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		UserID:    userID,
		UserEmail: userEmail,
		UserName:  userName,
		UserRole:  userRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    configuration.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-30 * time.Second)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, signErr := token.SignedString(configuration.SigningKey)
	return signed, expiresAt, signErr
}

// parseAccessJWT validates a bearer token and returns its claims.
func parseAccessJWT(clock Clock, bearer string, configuration Config) (*accessClaims, error) {
	parsed, parseErr := jwt.ParseWithClaims(bearer, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return configuration.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(clock.Now))
	if parseErr != nil || parsed == nil || !parsed.Valid {
		return nil, fmt.Errorf("stub.jwt.parse: %w", parseErr)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || claims.Issuer != configuration.Issuer {
		return nil, errors.New("stub.jwt.parse: issuer mismatch")
	}
	return claims, nil
}

// Clock provides the current time; tests substitute a controllable one.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns a Clock backed by the wall clock.
func NewSystemClock() Clock {
	return systemClock{}
}
