package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const correlationHeader = "X-Request-ID"

// attemptStage tags where a call sits in the request pipeline. A call makes
// an initial attempt, may pass through one shared refresh, and then retries
// exactly once; the stage makes the "already retried" invariant explicit.
type attemptStage int

const (
	attemptInitial attemptStage = iota
	attemptRetryAfterRefresh
)

// Executor issues requests to protected endpoints. It attaches the stored
// access token as a bearer credential, and on a 401 performs one silent
// refresh and one retry. Concurrent 401s collapse into a single in-flight
// refresh shared by all waiters.
type Executor struct {
	baseURL          string
	httpClient       *http.Client
	credentials      CredentialStore
	gateway          AuthGateway
	accessTTL        time.Duration
	clock            Clock
	logger           *zap.Logger
	metrics          MetricsRecorder
	refreshGroup     singleflight.Group
	onSessionExpired func()
}

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials CredentialStore
	Gateway     AuthGateway
	// AccessTTL is the assumed access token lifetime when the token itself
	// carries no readable expiry claim.
	AccessTTL time.Duration
	Clock     Clock
	Logger    *zap.Logger
	Metrics   MetricsRecorder
}

// NewExecutor constructs an Executor.
func NewExecutor(configuration ExecutorConfig) *Executor {
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
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
	return &Executor{
		baseURL:     strings.TrimRight(configuration.BaseURL, "/"),
		httpClient:  httpClient,
		credentials: configuration.Credentials,
		gateway:     configuration.Gateway,
		accessTTL:   configuration.AccessTTL,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// SetSessionExpiredHandler registers the session manager's invalidation hook.
// The handler fires when a silent refresh was attempted and failed.
func (executor *Executor) SetSessionExpiredHandler(handler func()) {
	executor.onSessionExpired = handler
}

// DoJSON issues one call against a protected endpoint. The payload, when
// non-nil, is marshaled as the JSON body (re-marshaled on retry so the body
// is never a spent reader); a non-nil out receives the decoded 2xx body.
//
// Failure modes follow the taxonomy: *NetworkError for transport problems,
// ErrUnauthorized after an absent or failed refresh, *ValidationError for
// field-level rejections, *ServerError for everything else non-2xx.
func (executor *Executor) DoJSON(ctx context.Context, method string, path string, payload any, out any) error {
	correlationID := uuid.NewString()
	stage := attemptInitial

	for {
		statusCode, responseBody, sendErr := executor.send(ctx, method, path, payload, correlationID)
		if sendErr != nil {
			return sendErr
		}

		if statusCode == http.StatusUnauthorized {
			if stage != attemptInitial {
				executor.metrics.Increment("executor.unauthorized")
				return ErrUnauthorized
			}
			if refreshErr := executor.refreshShared(ctx); refreshErr != nil {
				return refreshErr
			}
			executor.metrics.Increment("executor.retry")
			executor.logger.Debug("retrying after silent refresh",
				zap.String("method", method),
				zap.String("path", path),
				zap.String("request_id", correlationID),
			)
			stage = attemptRetryAfterRefresh
			continue
		}

		if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
			return normalizeErrorBody(statusCode, responseBody)
		}

		if out != nil && len(responseBody) > 0 {
			if decodeErr := json.Unmarshal(responseBody, out); decodeErr != nil {
				return &NetworkError{Err: fmt.Errorf("executor.decode %s %s: %w", method, path, decodeErr)}
			}
		}
		return nil
	}
}

func (executor *Executor) send(ctx context.Context, method string, path string, payload any, correlationID string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, encodeErr := json.Marshal(payload)
		if encodeErr != nil {
			return 0, nil, &NetworkError{Err: encodeErr}
		}
		body = bytes.NewReader(encoded)
	}

	request, buildErr := http.NewRequestWithContext(ctx, method, executor.baseURL+path, body)
	if buildErr != nil {
		return 0, nil, &NetworkError{Err: buildErr}
	}
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set(correlationHeader, correlationID)

	if pair, ok := executor.credentials.Load(); ok && pair.AccessToken != "" {
		request.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}

	started := executor.clock.Now()
	response, doErr := executor.httpClient.Do(request)
	if doErr != nil {
		executor.metrics.Increment("executor.network_failure")
		return 0, nil, &NetworkError{Err: doErr}
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return 0, nil, &NetworkError{Err: readErr}
	}

	executor.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.String("request_id", correlationID),
		zap.Duration("elapsed", executor.clock.Now().Sub(started)),
	)
	return response.StatusCode, responseBody, nil
}

// refreshShared runs the refresh protocol at most once across all concurrent
// callers. Waiters piggyback on the in-flight call and observe its outcome.
// A failed refresh (rejection or network error) surfaces the session-expired
// signal and yields ErrUnauthorized; when no refresh token is stored at all,
// the 401 simply propagates without touching session state.
func (executor *Executor) refreshShared(ctx context.Context) error {
	_, refreshErr, shared := executor.refreshGroup.Do("refresh", func() (any, error) {
		pair, ok := executor.credentials.Load()
		if !ok || pair.RefreshToken == "" {
			return nil, ErrUnauthorized
		}
		if pair.RefreshExpired(executor.clock.Now()) {
			return nil, fmt.Errorf("%w: refresh token expired", ErrRefreshFailed)
		}

		executor.metrics.Increment("refresh.attempt")
		accessToken, gatewayErr := executor.gateway.Refresh(ctx, pair.RefreshToken)
		if gatewayErr != nil {
			executor.metrics.Increment("refresh.failure")
			return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, gatewayErr)
		}

		expiry, readable := tokenExpiry(accessToken)
		if !readable {
			expiry = executor.clock.Now().Add(executor.accessTTL)
		}
		if storeErr := executor.credentials.ReplaceAccess(accessToken, expiry); storeErr != nil {
			executor.logger.Warn("storing refreshed access token failed", zap.Error(storeErr))
		}
		executor.metrics.Increment("refresh.success")
		return accessToken, nil
	})
	if shared {
		executor.metrics.Increment("refresh.shared")
	}
	if refreshErr == nil {
		return nil
	}
	if refreshErr == ErrUnauthorized {
		return ErrUnauthorized
	}
	executor.signalSessionExpired(refreshErr)
	return fmt.Errorf("%w: silent refresh failed", ErrUnauthorized)
}

func (executor *Executor) signalSessionExpired(cause error) {
	executor.metrics.Increment("session.expired_signal")
	executor.logger.Info("session expired, forcing logout", zap.Error(cause))
	if executor.onSessionExpired != nil {
		executor.onSessionExpired()
	}
}
