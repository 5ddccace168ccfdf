package stubapi

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrRefreshTokenNotFound indicates no refresh token matched the opaque value.
	ErrRefreshTokenNotFound = errors.New("stub.refresh_store.not_found")
	// ErrRefreshTokenRevoked indicates the refresh token has been revoked.
	ErrRefreshTokenRevoked = errors.New("stub.refresh_store.revoked")
	// ErrRefreshTokenExpired indicates the refresh token has exceeded its expiry.
	ErrRefreshTokenExpired = errors.New("stub.refresh_store.expired")
)

// RefreshTokenStore manages long-lived refresh tokens. A refresh token only
// mints fresh access tokens; it is never rotated into a new refresh token.
type RefreshTokenStore interface {
	Issue(ctx context.Context, userID string, expiresUnix int64) (tokenID string, tokenOpaque string, err error)
	Validate(ctx context.Context, tokenOpaque string) (userID string, tokenID string, expiresUnix int64, err error)
	Revoke(ctx context.Context, tokenID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

const refreshOpaqueByteLength = 32

func newRefreshTokenID(now time.Time) string {
	nowString := now.UTC().Format(time.RFC3339Nano)
	return base64.RawURLEncoding.EncodeToString([]byte(nowString))
}

func generateRefreshOpaque() (string, string, error) {
	randomBytes := make([]byte, refreshOpaqueByteLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("stub.refresh_store.random: %w", err)
	}
	opaque := base64.RawURLEncoding.EncodeToString(randomBytes)
	return opaque, hashOpaque(opaque), nil
}

func hashOpaque(opaque string) string {
	sum := sha256.Sum256([]byte(opaque))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type memoryRefreshRecord struct {
	TokenID       string
	UserID        string
	Hash          string
	ExpiresUnix   int64
	RevokedAtUnix int64
	IssuedAtUnix  int64
}

// MemoryRefreshTokenStore is the in-memory RefreshTokenStore.
type MemoryRefreshTokenStore struct {
	mutex  sync.Mutex
	byID   map[string]*memoryRefreshRecord
	byHash map[string]string
	clock  Clock
}

// NewMemoryRefreshTokenStore creates an empty in-memory token store.
func NewMemoryRefreshTokenStore(clock Clock) *MemoryRefreshTokenStore {
	if clock == nil {
		clock = NewSystemClock()
	}
	return &MemoryRefreshTokenStore{
		byID:   make(map[string]*memoryRefreshRecord),
		byHash: make(map[string]string),
		clock:  clock,
	}
}

// Issue creates a new refresh token for the user.
func (store *MemoryRefreshTokenStore) Issue(ctx context.Context, userID string, expiresUnix int64) (string, string, error) {
	opaque, hashValue, generateErr := generateRefreshOpaque()
	if generateErr != nil {
		return "", "", generateErr
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	now := store.clock.Now()
	tokenID := newRefreshTokenID(now) + fmt.Sprintf("-%d", len(store.byID))
	store.byID[tokenID] = &memoryRefreshRecord{
		TokenID:      tokenID,
		UserID:       userID,
		Hash:         hashValue,
		ExpiresUnix:  expiresUnix,
		IssuedAtUnix: now.Unix(),
	}
	store.byHash[hashValue] = tokenID
	return tokenID, opaque, nil
}

// Validate resolves an opaque token to its owner, rejecting revoked and
// expired tokens.
func (store *MemoryRefreshTokenStore) Validate(ctx context.Context, tokenOpaque string) (string, string, int64, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	tokenID, exists := store.byHash[hashOpaque(tokenOpaque)]
	if !exists {
		return "", "", 0, ErrRefreshTokenNotFound
	}
	record := store.byID[tokenID]
	if record == nil {
		return "", "", 0, ErrRefreshTokenNotFound
	}
	if record.RevokedAtUnix != 0 {
		return "", "", 0, ErrRefreshTokenRevoked
	}
	if time.Unix(record.ExpiresUnix, 0).Before(store.clock.Now()) {
		return "", "", 0, ErrRefreshTokenExpired
	}
	return record.UserID, record.TokenID, record.ExpiresUnix, nil
}

// Revoke marks a token unusable. Revoking twice is not an error.
func (store *MemoryRefreshTokenStore) Revoke(ctx context.Context, tokenID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, exists := store.byID[tokenID]
	if !exists {
		return ErrRefreshTokenNotFound
	}
	if record.RevokedAtUnix == 0 {
		record.RevokedAtUnix = store.clock.Now().Unix()
	}
	return nil
}

// RevokeAllForUser marks every token owned by the user unusable. Called on
// logout, where the caller presents an access token rather than a specific
// refresh token.
func (store *MemoryRefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	now := store.clock.Now().Unix()
	for _, record := range store.byID {
		if record.UserID == userID && record.RevokedAtUnix == 0 {
			record.RevokedAtUnix = now
		}
	}
	return nil
}
