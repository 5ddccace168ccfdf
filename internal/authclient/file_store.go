package authclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const credentialFileMode = 0o600

// FileCredentialStore persists the credential pair as a JSON file.
//
// Storage failures are logged and swallowed: Load reports absent and
// Save/Clear become no-ops, so a read-only or missing home directory leaves
// the application usable as an anonymous client.
type FileCredentialStore struct {
	mutex  sync.Mutex
	path   string
	logger *zap.Logger
}

// NewFileCredentialStore constructs a store writing to the given path.
func NewFileCredentialStore(path string, logger *zap.Logger) *FileCredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCredentialStore{path: path, logger: logger}
}

// Save writes the pair atomically via a temp file rename.
func (store *FileCredentialStore) Save(pair CredentialPair) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return store.writeLocked(pair)
}

// Load reads the stored pair. Any read or decode failure reports absent.
func (store *FileCredentialStore) Load() (CredentialPair, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	data, readErr := os.ReadFile(store.path)
	if readErr != nil {
		if !os.IsNotExist(readErr) {
			store.logger.Debug("credential file unreadable", zap.String("path", store.path), zap.Error(readErr))
		}
		return CredentialPair{}, false
	}

	var pair CredentialPair
	if decodeErr := json.Unmarshal(data, &pair); decodeErr != nil {
		store.logger.Warn("credential file corrupt, treating as absent", zap.String("path", store.path), zap.Error(decodeErr))
		return CredentialPair{}, false
	}
	if pair.AccessToken == "" && pair.RefreshToken == "" {
		return CredentialPair{}, false
	}
	return pair, true
}

// Clear removes the credential file. A missing file is not an error.
func (store *FileCredentialStore) Clear() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if removeErr := os.Remove(store.path); removeErr != nil && !os.IsNotExist(removeErr) {
		store.logger.Warn("credential file remove failed", zap.String("path", store.path), zap.Error(removeErr))
	}
	return nil
}

// ReplaceAccess rewrites the file with a fresh access token, keeping the
// stored refresh token. A missing file makes this a no-op.
func (store *FileCredentialStore) ReplaceAccess(accessToken string, accessExpiry time.Time) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	data, readErr := os.ReadFile(store.path)
	if readErr != nil {
		return nil
	}
	var pair CredentialPair
	if decodeErr := json.Unmarshal(data, &pair); decodeErr != nil {
		return nil
	}
	pair.AccessToken = accessToken
	pair.AccessExpiry = accessExpiry
	return store.writeLocked(pair)
}

func (store *FileCredentialStore) writeLocked(pair CredentialPair) error {
	encoded, encodeErr := json.Marshal(pair)
	if encodeErr != nil {
		store.logger.Warn("credential encode failed", zap.Error(encodeErr))
		return nil
	}

	directory := filepath.Dir(store.path)
	if mkdirErr := os.MkdirAll(directory, 0o700); mkdirErr != nil {
		store.logger.Warn("credential directory create failed", zap.String("dir", directory), zap.Error(mkdirErr))
		return nil
	}

	temporary := store.path + ".tmp"
	if writeErr := os.WriteFile(temporary, encoded, credentialFileMode); writeErr != nil {
		store.logger.Warn("credential write failed", zap.String("path", temporary), zap.Error(writeErr))
		return nil
	}
	if renameErr := os.Rename(temporary, store.path); renameErr != nil {
		store.logger.Warn("credential rename failed", zap.String("path", store.path), zap.Error(renameErr))
		_ = os.Remove(temporary)
	}
	return nil
}
