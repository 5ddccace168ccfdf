// Package stubapi is an in-process double of the remote coinwatch API. It
// implements the auth contract (login, refresh, me, logout, register) plus
// the market, news, and watchlist endpoints, backed by in-memory stores and
// embedded seed data. Tests run it behind httptest; `coinwatch stub` serves
// it for local development.
package stubapi

import "time"

// Config configures token issuance for the stub server.
type Config struct {
	SigningKey []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultConfig mirrors the token lifetimes of the production deployment:
// short-lived access tokens, week-long refresh tokens.
func DefaultConfig() Config {
	return Config{
		SigningKey: []byte("stub-signing-key"),
		Issuer:     "coinwatch-stub",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}
