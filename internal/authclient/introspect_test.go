package authclient

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenExpiryReadsExpClaim(t *testing.T) {
	t.Parallel()

	wantExpiry := time.Now().UTC().Add(15 * time.Minute).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(wantExpiry),
	})
	signed, signErr := token.SignedString([]byte("any-key"))
	if signErr != nil {
		t.Fatalf("signing test token failed: %v", signErr)
	}

	expiry, ok := tokenExpiry(signed)
	if !ok {
		t.Fatalf("expected a readable expiry")
	}
	if !expiry.Equal(wantExpiry) {
		t.Fatalf("expiry mismatch: got %v want %v", expiry, wantExpiry)
	}
}

func TestTokenExpiryOpaqueToken(t *testing.T) {
	t.Parallel()

	if _, ok := tokenExpiry("not-a-jwt"); ok {
		t.Fatalf("opaque tokens carry no readable expiry")
	}
}

func TestTokenExpiryJWTWithoutExpClaim(t *testing.T) {
	t.Parallel()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-1"})
	signed, signErr := token.SignedString([]byte("any-key"))
	if signErr != nil {
		t.Fatalf("signing test token failed: %v", signErr)
	}
	if _, ok := tokenExpiry(signed); ok {
		t.Fatalf("a token without exp must report unreadable expiry")
	}
}
