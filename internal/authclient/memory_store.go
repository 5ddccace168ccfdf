package authclient

import (
	"sync"
	"time"
)

// MemoryCredentialStore is an in-memory store intended for tests and dev.
type MemoryCredentialStore struct {
	mutex   sync.Mutex
	pair    CredentialPair
	present bool
}

// NewMemoryCredentialStore constructs an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

// Save replaces the stored pair.
func (store *MemoryCredentialStore) Save(pair CredentialPair) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.pair = pair
	store.present = true
	return nil
}

// Load returns the stored pair if one was saved.
func (store *MemoryCredentialStore) Load() (CredentialPair, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if !store.present {
		return CredentialPair{}, false
	}
	return store.pair, true
}

// Clear removes the stored pair.
func (store *MemoryCredentialStore) Clear() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.pair = CredentialPair{}
	store.present = false
	return nil
}

// ReplaceAccess swaps the access token while keeping the refresh token.
func (store *MemoryCredentialStore) ReplaceAccess(accessToken string, accessExpiry time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if !store.present {
		return nil
	}
	store.pair.AccessToken = accessToken
	store.pair.AccessExpiry = accessExpiry
	return nil
}
