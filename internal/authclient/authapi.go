package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AuthGateway is the slice of the remote API used by the session manager and
// by the executor's refresh path. All methods take tokens explicitly; the
// gateway itself holds no credential state.
type AuthGateway interface {
	Login(ctx context.Context, email string, password string) (LoginResult, error)
	Register(ctx context.Context, name string, email string, password string) error
	Refresh(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, accessToken string) error
}

// LoginResult carries the identity and tokens issued by a successful login.
type LoginResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// HTTPAuthGateway talks to the /auth endpoints over HTTP.
type HTTPAuthGateway struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPAuthGateway constructs a gateway for the given API base URL.
// The client's timeout bounds every call; a timeout surfaces as NetworkError.
func NewHTTPAuthGateway(baseURL string, httpClient *http.Client) *HTTPAuthGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPAuthGateway{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Login exchanges credentials for an identity and a token pair.
func (gateway *HTTPAuthGateway) Login(ctx context.Context, email string, password string) (LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	var result LoginResult
	if err := gateway.postJSON(ctx, "/auth/login", "", payload, &result); err != nil {
		return LoginResult{}, err
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		return LoginResult{}, &NetworkError{Err: fmt.Errorf("auth.login: token pair missing from response")}
	}
	return result, nil
}

// Register creates a new account. Field problems come back as ValidationError.
func (gateway *HTTPAuthGateway) Register(ctx context.Context, name string, email string, password string) error {
	payload := map[string]string{"name": name, "email": email, "password": password}
	return gateway.postJSON(ctx, "/auth/register", "", payload, nil)
}

// Refresh presents the refresh token and returns a fresh access token.
// Any 4xx rejection surfaces as ErrRefreshFailed.
func (gateway *HTTPAuthGateway) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := gateway.postJSON(ctx, "/auth/refresh", refreshToken, nil, &result); err != nil {
		var network *NetworkError
		if errors.As(err, &network) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", ErrRefreshFailed)
	}
	return result.AccessToken, nil
}

// Logout revokes the session server-side. Best effort; callers log failures.
func (gateway *HTTPAuthGateway) Logout(ctx context.Context, accessToken string) error {
	request, buildErr := http.NewRequestWithContext(ctx, http.MethodDelete, gateway.baseURL+"/auth/logout", nil)
	if buildErr != nil {
		return &NetworkError{Err: buildErr}
	}
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}
	response, doErr := gateway.httpClient.Do(request)
	if doErr != nil {
		return &NetworkError{Err: doErr}
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode >= http.StatusMultipleChoices {
		return &ServerError{StatusCode: response.StatusCode}
	}
	return nil
}

func (gateway *HTTPAuthGateway) postJSON(ctx context.Context, path string, bearer string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, encodeErr := json.Marshal(payload)
		if encodeErr != nil {
			return &NetworkError{Err: encodeErr}
		}
		body = bytes.NewReader(encoded)
	}

	request, buildErr := http.NewRequestWithContext(ctx, http.MethodPost, gateway.baseURL+path, body)
	if buildErr != nil {
		return &NetworkError{Err: buildErr}
	}
	request.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		request.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, doErr := gateway.httpClient.Do(request)
	if doErr != nil {
		return &NetworkError{Err: doErr}
	}
	defer func() { _ = response.Body.Close() }()

	responseBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return &NetworkError{Err: readErr}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return normalizeErrorBody(response.StatusCode, responseBody)
	}

	if out != nil {
		if decodeErr := json.Unmarshal(responseBody, out); decodeErr != nil {
			return &NetworkError{Err: fmt.Errorf("auth.decode %s: %w", path, decodeErr)}
		}
	}
	return nil
}
