package authclient

import "time"

// CredentialPair holds the bearer tokens issued at login. Both tokens are
// opaque at this layer; expirations are tracked client-side so callers can
// skip requests that are guaranteed to fail.
type CredentialPair struct {
	AccessToken   string    `json:"access_token"`
	AccessExpiry  time.Time `json:"access_expiry"`
	RefreshToken  string    `json:"refresh_token"`
	RefreshExpiry time.Time `json:"refresh_expiry"`
}

// AccessExpired reports whether the access token is past its expiry.
// A zero expiry means the lifetime is unknown and the token is presumed live.
func (pair CredentialPair) AccessExpired(now time.Time) bool {
	if pair.AccessToken == "" {
		return true
	}
	if pair.AccessExpiry.IsZero() {
		return false
	}
	return now.After(pair.AccessExpiry)
}

// RefreshExpired reports whether the refresh token is past its expiry.
func (pair CredentialPair) RefreshExpired(now time.Time) bool {
	if pair.RefreshToken == "" {
		return true
	}
	if pair.RefreshExpiry.IsZero() {
		return false
	}
	return now.After(pair.RefreshExpiry)
}

// CredentialStore persists the credential pair across process restarts.
//
// Implementations must degrade rather than fail: when the underlying storage
// is unavailable, Load reports absent and Save/Clear become no-ops, so the
// application behaves as if never authenticated instead of crashing.
type CredentialStore interface {
	// Save replaces the stored pair wholesale. Called on login.
	Save(pair CredentialPair) error
	// Load returns the stored pair, or ok=false when nothing usable is stored.
	Load() (pair CredentialPair, ok bool)
	// Clear removes the stored pair. Called on logout and session invalidation.
	Clear() error
	// ReplaceAccess swaps only the access token, keeping the refresh token.
	// Called after a successful silent refresh.
	ReplaceAccess(accessToken string, accessExpiry time.Time) error
}
