package stubpg

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpekarov/coinwatch/internal/stubapi"
)

// PostgresRefreshTokenStore implements stubapi.RefreshTokenStore on Postgres.
type PostgresRefreshTokenStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRefreshTokenStore constructs a Postgres store.
func NewPostgresRefreshTokenStore(pool *pgxpool.Pool) *PostgresRefreshTokenStore {
	return &PostgresRefreshTokenStore{pool: pool}
}

// Issue inserts a new token row and returns the token id and opaque token.
func (store *PostgresRefreshTokenStore) Issue(ctx context.Context, userID string, expiresUnix int64) (string, string, error) {
	tokenID := store.newTokenID()
	opaque, hashValue, err := store.randomOpaque()
	if err != nil {
		return "", "", err
	}
	_, execErr := store.pool.Exec(ctx, `
INSERT INTO stub_refresh_tokens (token_id, user_id, token_hash, expires_unix, revoked_at_unix, issued_at_unix)
VALUES ($1, $2, $3, $4, 0, $5)
`, tokenID, userID, hashValue, expiresUnix, time.Now().UTC().Unix())
	if execErr != nil {
		return "", "", execErr
	}
	return tokenID, opaque, nil
}

// Validate checks the opaque token and returns owner, token id, and expiry.
func (store *PostgresRefreshTokenStore) Validate(ctx context.Context, tokenOpaque string) (string, string, int64, error) {
	if tokenOpaque == "" {
		return "", "", 0, stubapi.ErrRefreshTokenNotFound
	}
	hashValue := store.hash(tokenOpaque)
	var userID string
	var tokenID string
	var expiresUnix int64
	var revokedAt int64
	row := store.pool.QueryRow(ctx, `
SELECT user_id, token_id, expires_unix, revoked_at_unix
FROM stub_refresh_tokens
WHERE token_hash = $1
`, hashValue)
	if scanErr := row.Scan(&userID, &tokenID, &expiresUnix, &revokedAt); scanErr != nil {
		return "", "", 0, stubapi.ErrRefreshTokenNotFound
	}
	if revokedAt != 0 {
		return "", "", 0, stubapi.ErrRefreshTokenRevoked
	}
	if time.Unix(expiresUnix, 0).Before(time.Now().UTC()) {
		return "", "", 0, stubapi.ErrRefreshTokenExpired
	}
	return userID, tokenID, expiresUnix, nil
}

// Revoke marks a token as revoked.
func (store *PostgresRefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	_, err := store.pool.Exec(ctx, `
UPDATE stub_refresh_tokens
SET revoked_at_unix = $1
WHERE token_id = $2 AND revoked_at_unix = 0
`, time.Now().UTC().Unix(), tokenID)
	return err
}

// RevokeAllForUser marks every token owned by the user as revoked.
func (store *PostgresRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := store.pool.Exec(ctx, `
UPDATE stub_refresh_tokens
SET revoked_at_unix = $1
WHERE user_id = $2 AND revoked_at_unix = 0
`, time.Now().UTC().Unix(), userID)
	return err
}

func (store *PostgresRefreshTokenStore) newTokenID() string {
	nowString := time.Now().UTC().Format(time.RFC3339Nano)
	return base64.RawURLEncoding.EncodeToString([]byte(nowString))
}

func (store *PostgresRefreshTokenStore) randomOpaque() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	opaque := base64.RawURLEncoding.EncodeToString(randomBytes)
	return opaque, store.hash(opaque), nil
}

func (store *PostgresRefreshTokenStore) hash(opaque string) string {
	sum := sha256.Sum256([]byte(opaque))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
