package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiry extracts the exp claim from a JWT-shaped access token without
// verifying its signature. Verification belongs to the server; the client
// only wants to know when a token is guaranteed stale. Tokens that are not
// JWTs or carry no exp claim report ok=false and the caller falls back to a
// configured lifetime.
func tokenExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	parsed, _, parseErr := parser.ParseUnverified(token, jwt.MapClaims{})
	if parseErr != nil || parsed == nil {
		return time.Time{}, false
	}
	expiry, expiryErr := parsed.Claims.GetExpirationTime()
	if expiryErr != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}
