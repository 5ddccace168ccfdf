package authclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthorized indicates the server rejected the credential and no
	// silent refresh could recover it.
	ErrUnauthorized = errors.New("executor.unauthorized")
	// ErrRefreshFailed indicates the refresh call itself was rejected or
	// could not be completed.
	ErrRefreshFailed = errors.New("executor.refresh_failed")
	// ErrSessionExpired is surfaced to users when a forced logout occurred.
	ErrSessionExpired = errors.New("session.expired")
	// ErrLoginSuperseded indicates a login completion was discarded because a
	// later session transition already took effect.
	ErrLoginSuperseded = errors.New("session.login_superseded")
)

// NetworkError wraps transport-level failures: connection refused, timeouts,
// malformed response bodies. These are retryable from the caller's point of
// view and are never produced for ordinary 4xx/5xx responses.
type NetworkError struct {
	Err error
}

func (failure *NetworkError) Error() string {
	return fmt.Sprintf("executor.network_failure: %v", failure.Err)
}

func (failure *NetworkError) Unwrap() error {
	return failure.Err
}

// ServerError carries a 5xx (or otherwise unclassifiable) response verbatim.
type ServerError struct {
	StatusCode int
	Message    string
}

func (failure *ServerError) Error() string {
	if failure.Message == "" {
		return fmt.Sprintf("executor.server_error: status %d", failure.StatusCode)
	}
	return fmt.Sprintf("executor.server_error: status %d: %s", failure.StatusCode, failure.Message)
}

// ValidationError carries field-level messages from the server or from a
// local pre-check. It is an ordinary response for callers to render inline,
// not an exceptional condition.
type ValidationError struct {
	Fields map[string][]string
}

func (failure *ValidationError) Error() string {
	parts := make([]string, 0, len(failure.Fields))
	for field, messages := range failure.Fields {
		parts = append(parts, field+": "+strings.Join(messages, "; "))
	}
	return "validation_failure: " + strings.Join(parts, ", ")
}

// serverFieldKey collects messages that arrive without a field name.
const serverFieldKey = "server"

// normalizeErrorBody converts the error payload shapes observed across API
// revisions into one of the taxonomy values. Payloads arrive as
// {"errors": {field: [msgs]}}, {"errors": [msgs]}, {"error": "..."},
// {"msg": "..."}, or bare text; all collapse into either a ValidationError
// or a ServerError before any caller sees them.
func normalizeErrorBody(statusCode int, body []byte) error {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return &ServerError{StatusCode: statusCode}
	}

	var envelope struct {
		Errors  json.RawMessage `json:"errors"`
		Error   string          `json:"error"`
		Msg     string          `json:"msg"`
		Message string          `json:"message"`
	}
	if decodeErr := json.Unmarshal(body, &envelope); decodeErr != nil {
		return &ServerError{StatusCode: statusCode, Message: trimmed}
	}

	if len(envelope.Errors) > 0 {
		if fields := decodeFieldErrors(envelope.Errors); fields != nil {
			return &ValidationError{Fields: fields}
		}
	}
	for _, message := range []string{envelope.Error, envelope.Msg, envelope.Message} {
		if message != "" {
			return &ServerError{StatusCode: statusCode, Message: message}
		}
	}
	return &ServerError{StatusCode: statusCode, Message: trimmed}
}

func decodeFieldErrors(raw json.RawMessage) map[string][]string {
	var byField map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byField); err == nil {
		fields := make(map[string][]string, len(byField))
		for field, value := range byField {
			fields[field] = decodeMessageList(value)
		}
		return fields
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return map[string][]string{serverFieldKey: asList}
	}

	var asText string
	if err := json.Unmarshal(raw, &asText); err == nil {
		return map[string][]string{serverFieldKey: {asText}}
	}
	return nil
}

func decodeMessageList(raw json.RawMessage) []string {
	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		return asList
	}
	var asText string
	if err := json.Unmarshal(raw, &asText); err == nil {
		return []string{asText}
	}
	return []string{string(raw)}
}
