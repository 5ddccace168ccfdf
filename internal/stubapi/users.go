package stubapi

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Role slugs issued by the stub.
const (
	RoleAdmin  = "admin"
	RoleMember = "user"
)

var (
	// ErrBadCredentials indicates an unknown email or a wrong password.
	ErrBadCredentials = errors.New("stub.users.bad_credentials")
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("stub.users.email_taken")
	// ErrUserNotFound indicates a lookup for an unknown user ID.
	ErrUserNotFound = errors.New("stub.users.not_found")
)

// UserProfile is a stored account.
type UserProfile struct {
	ID           string
	Name         string
	Email        string
	Role         string
	passwordHash []byte
}

// InMemoryUsers stores accounts for the stub server.
type InMemoryUsers struct {
	mutex    sync.Mutex
	byEmail  map[string]*UserProfile
	byID     map[string]*UserProfile
	sequence int
}

// NewInMemoryUsers constructs an empty user store.
func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		byEmail: make(map[string]*UserProfile),
		byID:    make(map[string]*UserProfile),
	}
}

// Seed inserts an account with a known password, for dev and tests.
func (store *InMemoryUsers) Seed(name string, email string, password string, role string) (UserProfile, error) {
	hash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if hashErr != nil {
		return UserProfile{}, fmt.Errorf("stub.users.hash: %w", hashErr)
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()
	normalized := strings.ToLower(strings.TrimSpace(email))
	if _, exists := store.byEmail[normalized]; exists {
		return UserProfile{}, ErrEmailTaken
	}
	store.sequence++
	record := &UserProfile{
		ID:           fmt.Sprintf("u-%d", store.sequence),
		Name:         name,
		Email:        normalized,
		Role:         role,
		passwordHash: hash,
	}
	store.byEmail[normalized] = record
	store.byID[record.ID] = record
	return *record, nil
}

// Register creates a member account.
func (store *InMemoryUsers) Register(name string, email string, password string) (UserProfile, error) {
	return store.Seed(name, email, password, RoleMember)
}

// Authenticate checks the password for an email.
func (store *InMemoryUsers) Authenticate(email string, password string) (UserProfile, error) {
	store.mutex.Lock()
	record, exists := store.byEmail[strings.ToLower(strings.TrimSpace(email))]
	store.mutex.Unlock()
	if !exists {
		return UserProfile{}, ErrBadCredentials
	}
	if compareErr := bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)); compareErr != nil {
		return UserProfile{}, ErrBadCredentials
	}
	return *record, nil
}

// GetByID looks a user up by ID.
func (store *InMemoryUsers) GetByID(userID string) (UserProfile, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	record, exists := store.byID[userID]
	if !exists {
		return UserProfile{}, ErrUserNotFound
	}
	return *record, nil
}
