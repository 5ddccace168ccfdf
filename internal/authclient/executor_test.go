package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type controllableClock struct {
	mutex   sync.Mutex
	current time.Time
}

func (clock *controllableClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

func (clock *controllableClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(duration)
}

// scriptedGateway satisfies AuthGateway with per-test behavior.
type scriptedGateway struct {
	loginFunc    func(ctx context.Context, email string, password string) (LoginResult, error)
	registerFunc func(ctx context.Context, name string, email string, password string) error
	refreshFunc  func(ctx context.Context, refreshToken string) (string, error)
	logoutFunc   func(ctx context.Context, accessToken string) error
}

func (gateway *scriptedGateway) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	if gateway.loginFunc == nil {
		return LoginResult{}, errors.New("login not scripted")
	}
	return gateway.loginFunc(ctx, email, password)
}

func (gateway *scriptedGateway) Register(ctx context.Context, name string, email string, password string) error {
	if gateway.registerFunc == nil {
		return errors.New("register not scripted")
	}
	return gateway.registerFunc(ctx, name, email, password)
}

func (gateway *scriptedGateway) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if gateway.refreshFunc == nil {
		return "", errors.New("refresh not scripted")
	}
	return gateway.refreshFunc(ctx, refreshToken)
}

func (gateway *scriptedGateway) Logout(ctx context.Context, accessToken string) error {
	if gateway.logoutFunc == nil {
		return nil
	}
	return gateway.logoutFunc(ctx, accessToken)
}

func newTestExecutor(t *testing.T, baseURL string, store CredentialStore, gateway AuthGateway) (*Executor, *CounterMetrics) {
	t.Helper()
	metrics := NewCounterMetrics()
	executor := NewExecutor(ExecutorConfig{
		BaseURL:     baseURL,
		Credentials: store,
		Gateway:     gateway,
		AccessTTL:   time.Hour,
		Logger:      zaptest.NewLogger(t),
		Metrics:     metrics,
	})
	return executor, metrics
}

func TestExecutorAttachesBearerAndDecodes(t *testing.T) {
	t.Parallel()

	var seenAuthorization atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seenAuthorization.Store(request.Header.Get("Authorization"))
		if request.Header.Get("X-Request-ID") == "" {
			t.Error("expected a correlation id header on every request")
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"value":42}`))
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{AccessToken: "live-access", RefreshToken: "refresh"})

	executor, _ := newTestExecutor(t, server.URL, store, &scriptedGateway{})

	var decoded struct {
		Value int `json:"value"`
	}
	if doErr := executor.DoJSON(context.Background(), http.MethodGet, "/value", nil, &decoded); doErr != nil {
		t.Fatalf("request failed: %v", doErr)
	}
	if decoded.Value != 42 {
		t.Fatalf("unexpected decoded value: %d", decoded.Value)
	}
	if got := seenAuthorization.Load(); got != "Bearer live-access" {
		t.Fatalf("unexpected authorization header: %v", got)
	}
}

func TestExecutorSilentRefreshThenRetry(t *testing.T) {
	t.Parallel()

	var requestCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestCount.Add(1)
		if request.Header.Get("Authorization") != "Bearer renewed-access" {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = writer.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{AccessToken: "stale-access", RefreshToken: "refresh-token"})

	var refreshCount atomic.Int64
	gateway := &scriptedGateway{refreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
		refreshCount.Add(1)
		if refreshToken != "refresh-token" {
			t.Errorf("unexpected refresh token: %q", refreshToken)
		}
		return "renewed-access", nil
	}}

	executor, metrics := newTestExecutor(t, server.URL, store, gateway)

	if doErr := executor.DoJSON(context.Background(), http.MethodGet, "/protected", nil, nil); doErr != nil {
		t.Fatalf("expected silent recovery, got: %v", doErr)
	}
	if got := refreshCount.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if got := requestCount.Load(); got != 2 {
		t.Fatalf("expected original call plus one retry, got %d requests", got)
	}
	pair, ok := store.Load()
	if !ok || pair.AccessToken != "renewed-access" {
		t.Fatalf("renewed access token not stored: %+v", pair)
	}
	if pair.RefreshToken != "refresh-token" {
		t.Fatalf("refresh token must survive renewal: %q", pair.RefreshToken)
	}
	if metrics.Count("refresh.success") != 1 {
		t.Fatalf("expected refresh.success metric")
	}
}

func TestExecutorCoalescesConcurrentRefreshes(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Header.Get("Authorization") != "Bearer renewed-access" {
			writer.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{AccessToken: "stale-access", RefreshToken: "refresh-token"})

	var refreshCount atomic.Int64
	refreshEntered := make(chan struct{})
	releaseRefresh := make(chan struct{})
	var enteredOnce sync.Once
	gateway := &scriptedGateway{refreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
		refreshCount.Add(1)
		enteredOnce.Do(func() { close(refreshEntered) })
		<-releaseRefresh
		return "renewed-access", nil
	}}

	executor, _ := newTestExecutor(t, server.URL, store, gateway)

	const concurrentCallers = 8
	results := make(chan error, concurrentCallers)
	call := func() {
		results <- executor.DoJSON(context.Background(), http.MethodGet, "/protected", nil, nil)
	}

	go call()
	<-refreshEntered
	for index := 1; index < concurrentCallers; index++ {
		go call()
	}
	// Give the late callers time to hit their 401 and join the in-flight
	// refresh before it completes.
	time.Sleep(100 * time.Millisecond)
	close(releaseRefresh)

	for index := 0; index < concurrentCallers; index++ {
		if callErr := <-results; callErr != nil {
			t.Fatalf("caller %d failed: %v", index, callErr)
		}
	}
	if got := refreshCount.Load(); got != 1 {
		t.Fatalf("expected a single shared refresh, got %d", got)
	}
}

func TestExecutorRefreshRejectionForcesSessionExpiry(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{AccessToken: "stale-access", RefreshToken: "revoked-refresh"})

	gateway := &scriptedGateway{refreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
		return "", &ServerError{StatusCode: http.StatusUnauthorized, Message: "refresh revoked"}
	}}

	executor, metrics := newTestExecutor(t, server.URL, store, gateway)
	var expiredSignals atomic.Int64
	executor.SetSessionExpiredHandler(func() { expiredSignals.Add(1) })

	doErr := executor.DoJSON(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(doErr, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized after failed refresh, got: %v", doErr)
	}
	if got := expiredSignals.Load(); got != 1 {
		t.Fatalf("expected one session-expired signal, got %d", got)
	}
	if metrics.Count("refresh.failure") != 1 {
		t.Fatalf("expected refresh.failure metric")
	}
}

func TestExecutorWithoutRefreshTokenDoesNotSignalExpiry(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{AccessToken: "stale-access"})

	refreshCalled := false
	gateway := &scriptedGateway{refreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
		refreshCalled = true
		return "", nil
	}}

	executor, _ := newTestExecutor(t, server.URL, store, gateway)
	var expiredSignals atomic.Int64
	executor.SetSessionExpiredHandler(func() { expiredSignals.Add(1) })

	doErr := executor.DoJSON(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(doErr, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got: %v", doErr)
	}
	if refreshCalled {
		t.Fatalf("refresh must not run without a stored refresh token")
	}
	if expiredSignals.Load() != 0 {
		t.Fatalf("a missing refresh token must not force a logout")
	}
}

func TestExecutorSecondUnauthorizedStopsRetrying(t *testing.T) {
	t.Parallel()

	var requestCount atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestCount.Add(1)
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{AccessToken: "stale-access", RefreshToken: "refresh-token"})

	var refreshCount atomic.Int64
	gateway := &scriptedGateway{refreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
		refreshCount.Add(1)
		return "renewed-access", nil
	}}

	executor, _ := newTestExecutor(t, server.URL, store, gateway)

	doErr := executor.DoJSON(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(doErr, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got: %v", doErr)
	}
	if got := refreshCount.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh, got %d", got)
	}
	if got := requestCount.Load(); got != 2 {
		t.Fatalf("expected exactly two requests, got %d", got)
	}
}

func TestExecutorExpiredRefreshTokenFailsWithoutGatewayCall(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	clock := &controllableClock{current: time.Now().UTC()}
	store := NewMemoryCredentialStore()
	_ = store.Save(CredentialPair{
		AccessToken:   "stale-access",
		RefreshToken:  "old-refresh",
		RefreshExpiry: clock.Now().Add(-time.Minute),
	})

	refreshCalled := false
	gateway := &scriptedGateway{refreshFunc: func(ctx context.Context, refreshToken string) (string, error) {
		refreshCalled = true
		return "", nil
	}}

	metrics := NewCounterMetrics()
	executor := NewExecutor(ExecutorConfig{
		BaseURL:     server.URL,
		Credentials: store,
		Gateway:     gateway,
		AccessTTL:   time.Hour,
		Clock:       clock,
		Logger:      zaptest.NewLogger(t),
		Metrics:     metrics,
	})
	var expiredSignals atomic.Int64
	executor.SetSessionExpiredHandler(func() { expiredSignals.Add(1) })

	doErr := executor.DoJSON(context.Background(), http.MethodGet, "/protected", nil, nil)
	if !errors.Is(doErr, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got: %v", doErr)
	}
	if refreshCalled {
		t.Fatalf("an expired refresh token must not reach the gateway")
	}
	if expiredSignals.Load() != 1 {
		t.Fatalf("an expired refresh token counts as refresh exhaustion")
	}
}

func TestExecutorNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {}))
	server.Close()

	store := NewMemoryCredentialStore()
	executor, metrics := newTestExecutor(t, server.URL, store, &scriptedGateway{})

	doErr := executor.DoJSON(context.Background(), http.MethodGet, "/anything", nil, nil)
	var networkErr *NetworkError
	if !errors.As(doErr, &networkErr) {
		t.Fatalf("expected NetworkError, got %T: %v", doErr, doErr)
	}
	if metrics.Count("executor.network_failure") != 1 {
		t.Fatalf("expected network failure metric")
	}
}

func TestExecutorNormalizesValidationResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusBadRequest)
		_, _ = writer.Write([]byte(`{"errors":{"title":["Title is required."]}}`))
	}))
	defer server.Close()

	store := NewMemoryCredentialStore()
	executor, _ := newTestExecutor(t, server.URL, store, &scriptedGateway{})

	doErr := executor.DoJSON(context.Background(), http.MethodPost, "/things", map[string]string{}, nil)
	var validationErr *ValidationError
	if !errors.As(doErr, &validationErr) {
		t.Fatalf("expected ValidationError, got %T: %v", doErr, doErr)
	}
	if got := validationErr.Fields["title"]; len(got) != 1 || got[0] != "Title is required." {
		t.Fatalf("unexpected field errors: %v", validationErr.Fields)
	}
}
