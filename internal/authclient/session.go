package authclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IdentityCache persists the last known identity for fast bootstrap display.
// The cached record is never trusted over a fresh server check when both are
// available. Implementations degrade to cache-miss on storage failure.
type IdentityCache interface {
	SaveIdentity(user User) error
	LoadIdentity() (User, bool)
	ClearIdentity() error
}

// Manager owns the authoritative in-memory session. It is the single writer
// of the credential store's logical state, and the single source of truth
// read by route authorization.
//
// Every transition carries a generation tag taken when its triggering
// operation starts; a completion whose generation is no longer current is
// discarded, so an overtaken login can never overwrite a newer logout.
type Manager struct {
	mutex      sync.Mutex
	generation uint64
	session    Session

	credentials   CredentialStore
	gateway       AuthGateway
	executor      *Executor
	identityCache IdentityCache
	accessTTL     time.Duration
	refreshTTL    time.Duration
	clock         Clock
	logger        *zap.Logger
	metrics       MetricsRecorder
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Credentials   CredentialStore
	Gateway       AuthGateway
	Executor      *Executor
	IdentityCache IdentityCache
	// AccessTTL and RefreshTTL are the assumed token lifetimes when a token
	// carries no readable expiry claim.
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Clock      Clock
	Logger     *zap.Logger
	Metrics    MetricsRecorder
}

// NewManager constructs a Manager and registers the session-expired hook on
// the executor.
func NewManager(configuration ManagerConfig) *Manager {
	clock := configuration.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := configuration.Metrics
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	manager := &Manager{
		session:       Session{Status: StatusUninitialized},
		credentials:   configuration.Credentials,
		gateway:       configuration.Gateway,
		executor:      configuration.Executor,
		identityCache: configuration.IdentityCache,
		accessTTL:     configuration.AccessTTL,
		refreshTTL:    configuration.RefreshTTL,
		clock:         clock,
		logger:        logger,
		metrics:       metrics,
	}
	if manager.executor != nil {
		manager.executor.SetSessionExpiredHandler(manager.ForceAnonymous)
	}
	return manager
}

// Current returns an atomic snapshot of the session. Intermediate state is
// never published: readers see either the previous or the next identity,
// never a mixture.
func (manager *Manager) Current() Session {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	return manager.session
}

// CachedIdentity returns the locally cached identity, when one is stored.
func (manager *Manager) CachedIdentity() (User, bool) {
	if manager.identityCache == nil {
		return User{}, false
	}
	return manager.identityCache.LoadIdentity()
}

type meResponse struct {
	User User `json:"user"`
}

// Bootstrap resolves the stored credential into a terminal Ready state. With
// no usable stored credential it short-circuits to Ready anonymous; otherwise
// it asks the executor for the current identity, letting the executor's
// silent-refresh path renew an expired access token transparently. A network
// failure resolves to Ready anonymous rather than hanging, without touching
// the stored credential. Bootstrap is idempotent: repeated calls with an
// unchanged credential reach the same terminal identity.
func (manager *Manager) Bootstrap(ctx context.Context) Session {
	generation := manager.beginLoading()

	pair, stored := manager.credentials.Load()
	if !stored || (pair.AccessExpired(manager.clock.Now()) && pair.RefreshExpired(manager.clock.Now())) {
		manager.commit(generation, nil)
		return manager.Current()
	}

	var identity meResponse
	fetchErr := manager.executor.DoJSON(ctx, http.MethodGet, "/auth/me", nil, &identity)
	switch {
	case fetchErr == nil:
		user := identity.User
		manager.cacheIdentity(user)
		manager.commit(generation, &user)
	case errors.Is(fetchErr, ErrUnauthorized):
		_ = manager.credentials.Clear()
		manager.clearCachedIdentity()
		manager.commit(generation, nil)
	default:
		// Network or server failure: fail safe to logged out for this page
		// load, keeping the stored credential for the next attempt.
		manager.logger.Warn("bootstrap identity fetch failed", zap.Error(fetchErr))
		manager.metrics.Increment("bootstrap.degraded")
		manager.commit(generation, nil)
	}
	return manager.Current()
}

// Login validates the fields locally, exchanges them for a token pair, and
// publishes the authenticated session. Server field errors come back as a
// *ValidationError for inline display; the session stays anonymous.
func (manager *Manager) Login(ctx context.Context, email string, password string) (Session, error) {
	if fieldErrors := requireFields(map[string]string{"email": email, "password": password}); fieldErrors != nil {
		return manager.Current(), fieldErrors
	}

	generation := manager.nextGeneration()

	result, loginErr := manager.gateway.Login(ctx, email, password)
	if loginErr != nil {
		manager.metrics.Increment("login.failure")
		return manager.Current(), loginErr
	}

	now := manager.clock.Now()
	pair := CredentialPair{
		AccessToken:   result.AccessToken,
		AccessExpiry:  expiryOrDefault(result.AccessToken, now, manager.accessTTL),
		RefreshToken:  result.RefreshToken,
		RefreshExpiry: expiryOrDefault(result.RefreshToken, now, manager.refreshTTL),
	}

	manager.mutex.Lock()
	if generation != manager.generation {
		manager.mutex.Unlock()
		manager.metrics.Increment("login.superseded")
		manager.logger.Info("discarding stale login completion")
		return manager.Current(), ErrLoginSuperseded
	}
	_ = manager.credentials.Save(pair)
	user := result.User
	manager.session = Session{Identity: &user, Status: StatusReady}
	manager.mutex.Unlock()

	manager.cacheIdentity(result.User)
	manager.metrics.Increment("login.success")
	manager.logger.Info("logged in", zap.String("user_id", result.User.ID), zap.String("role", string(result.User.Role)))
	return manager.Current(), nil
}

// Register creates a new account. It does not sign the user in.
func (manager *Manager) Register(ctx context.Context, name string, email string, password string) error {
	if fieldErrors := requireFields(map[string]string{"name": name, "email": email, "password": password}); fieldErrors != nil {
		return fieldErrors
	}
	return manager.gateway.Register(ctx, name, email, password)
}

// Logout revokes the session server-side (best effort), clears the stored
// credential, and publishes the anonymous session.
func (manager *Manager) Logout(ctx context.Context) Session {
	pair, _ := manager.credentials.Load()
	generation := manager.nextGeneration()

	if logoutErr := manager.gateway.Logout(ctx, pair.AccessToken); logoutErr != nil {
		manager.logger.Warn("server-side logout failed", zap.Error(logoutErr))
	}

	manager.mutex.Lock()
	if generation == manager.generation {
		_ = manager.credentials.Clear()
		manager.session = Session{Status: StatusReady}
	}
	manager.mutex.Unlock()

	manager.clearCachedIdentity()
	manager.metrics.Increment("logout")
	return manager.Current()
}

// ForceAnonymous is the refresh-exhaustion path: the executor attempted a
// silent refresh and the server rejected it. The credential pair is cleared
// and the anonymous session published, from any state.
func (manager *Manager) ForceAnonymous() {
	manager.mutex.Lock()
	manager.generation++
	_ = manager.credentials.Clear()
	manager.session = Session{Status: StatusReady}
	manager.mutex.Unlock()

	manager.clearCachedIdentity()
	manager.metrics.Increment("session.forced_logout")
}

func (manager *Manager) beginLoading() uint64 {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	manager.generation++
	manager.session.Status = StatusLoading
	return manager.generation
}

func (manager *Manager) nextGeneration() uint64 {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	manager.generation++
	return manager.generation
}

// commit publishes a Ready state if the generation is still current; stale
// completions are discarded so transitions apply in completion order with
// last-write-wins semantics.
func (manager *Manager) commit(generation uint64, identity *User) bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()
	if generation != manager.generation {
		manager.metrics.Increment("session.stale_transition")
		return false
	}
	manager.session = Session{Identity: identity, Status: StatusReady}
	return true
}

func (manager *Manager) cacheIdentity(user User) {
	if manager.identityCache == nil {
		return
	}
	if cacheErr := manager.identityCache.SaveIdentity(user); cacheErr != nil {
		manager.logger.Debug("identity cache save failed", zap.Error(cacheErr))
	}
}

func (manager *Manager) clearCachedIdentity() {
	if manager.identityCache == nil {
		return
	}
	if cacheErr := manager.identityCache.ClearIdentity(); cacheErr != nil {
		manager.logger.Debug("identity cache clear failed", zap.Error(cacheErr))
	}
}

func requireFields(fields map[string]string) *ValidationError {
	missing := make(map[string][]string)
	for field, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing[field] = []string{field + " is required"}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &ValidationError{Fields: missing}
}

func expiryOrDefault(token string, now time.Time, fallback time.Duration) time.Time {
	if expiry, ok := tokenExpiry(token); ok {
		return expiry
	}
	return now.Add(fallback)
}
