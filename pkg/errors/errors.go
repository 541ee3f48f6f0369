// Package errors defines the unified error taxonomy for gateway operations.
// Provider-specific failures are classified into these kinds; the HTTP layer
// and the reasoning engine decide surfacing based on Kind alone.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of gateway failure.
type Kind string

const (
	KindAliasNotFound         Kind = "ALIAS_NOT_FOUND"
	KindProviderExhausted     Kind = "PROVIDER_EXHAUSTED"
	KindNoProviderAvailable   Kind = "NO_PROVIDER_AVAILABLE"
	KindRequestContentInvalid Kind = "REQUEST_CONTENT_INVALID"
	KindCredentialPermanent   Kind = "CREDENTIAL_PERMANENT"
	KindCredentialTransient   Kind = "CREDENTIAL_TRANSIENT"
	KindWorkerTimeout         Kind = "WORKER_TIMEOUT"
	KindParseFailure          Kind = "PARSE_FAILURE"
	KindStepLimitExceeded     Kind = "STEP_LIMIT_EXCEEDED"
	KindLLMUnavailable        Kind = "LLM_UNAVAILABLE"
	KindUnknownPattern        Kind = "UNKNOWN_PATTERN"
	KindToolError             Kind = "TOOL_ERROR"
)

// GatewayError is a classified failure carrying enough context for
// logging, metrics labeling, and client response mapping.
type GatewayError struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Provider   string `json:"provider,omitempty"`
	Profile    string `json:"profile,omitempty"`
	Retryable  bool   `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s (provider=%s, code=%d)", e.Kind, e.Message, e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// HTTPStatusCode returns the status code to surface to the client.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	switch e.Kind {
	case KindAliasNotFound:
		return http.StatusNotFound
	case KindRequestContentInvalid:
		return http.StatusBadRequest
	case KindNoProviderAvailable:
		return http.StatusServiceUnavailable
	case KindWorkerTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the Kind from err, or "" if err is not a GatewayError.
func KindOf(err error) Kind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Is reports whether err is a GatewayError of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// NewAliasNotFound reports an alias with no configured priority chain.
func NewAliasNotFound(alias string) *GatewayError {
	return &GatewayError{
		Kind:       KindAliasNotFound,
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("model alias %q is not configured", alias),
	}
}

// NewProviderExhausted reports that every credential for a provider was
// consumed without a successful upstream call. The router consumes this
// and moves on to the next profile; it never reaches the client.
func NewProviderExhausted(provider, profile string) *GatewayError {
	return &GatewayError{
		Kind:      KindProviderExhausted,
		Message:   fmt.Sprintf("all credentials for provider %q exhausted", provider),
		Provider:  provider,
		Profile:   profile,
		Retryable: true,
	}
}

// NewNoProviderAvailable reports that every profile in an alias chain failed.
func NewNoProviderAvailable(alias string) *GatewayError {
	return &GatewayError{
		Kind:       KindNoProviderAvailable,
		StatusCode: http.StatusServiceUnavailable,
		Message:    fmt.Sprintf("no provider available for alias %q", alias),
	}
}

// NewRequestContentInvalid reports a request the upstream rejected for
// content reasons. Surfaced to the client immediately, no retry.
func NewRequestContentInvalid(provider, detail string) *GatewayError {
	return &GatewayError{
		Kind:       KindRequestContentInvalid,
		StatusCode: http.StatusBadRequest,
		Message:    detail,
		Provider:   provider,
	}
}

// NewCredentialPermanent reports a credential the upstream rejected
// outright. The executor retires it and rotates; never client-visible.
func NewCredentialPermanent(provider string, status int, detail string) *GatewayError {
	return &GatewayError{
		Kind:       KindCredentialPermanent,
		StatusCode: status,
		Message:    detail,
		Provider:   provider,
	}
}

// NewCredentialTransient reports a rate limit, upstream 5xx, or network
// failure. The executor quarantines the credential and rotates.
func NewCredentialTransient(provider string, status int, detail string) *GatewayError {
	return &GatewayError{
		Kind:       KindCredentialTransient,
		StatusCode: status,
		Message:    detail,
		Provider:   provider,
		Retryable:  true,
	}
}

// NewWorkerTimeout reports a reasoning session whose worker never
// acknowledged within the handshake window.
func NewWorkerTimeout(sessionID string) *GatewayError {
	return &GatewayError{
		Kind:       KindWorkerTimeout,
		StatusCode: http.StatusGatewayTimeout,
		Message:    fmt.Sprintf("no worker acknowledged session %s", sessionID),
	}
}

// NewParseFailure reports model output with neither an action nor a
// final answer.
func NewParseFailure(detail string) *GatewayError {
	return &GatewayError{Kind: KindParseFailure, Message: detail}
}

// NewStepLimitExceeded reports a session that hit its step bound.
func NewStepLimitExceeded(limit int) *GatewayError {
	return &GatewayError{
		Kind:    KindStepLimitExceeded,
		Message: fmt.Sprintf("reasoning loop exceeded %d steps without a final answer", limit),
	}
}

// NewLLMUnavailable reports that the full provider chain failed inside a
// reasoning loop.
func NewLLMUnavailable(alias string) *GatewayError {
	return &GatewayError{
		Kind:    KindLLMUnavailable,
		Message: fmt.Sprintf("no provider in the chain for %q could serve the reasoning step", alias),
	}
}

// NewUnknownPattern reports a reasoning pattern name with no loaded template.
func NewUnknownPattern(name string) *GatewayError {
	return &GatewayError{
		Kind:    KindUnknownPattern,
		Message: fmt.Sprintf("reasoning pattern %q is not loaded", name),
	}
}

// NewToolError reports a tool invocation failure. Recorded as an
// observation; the reasoning session continues.
func NewToolError(tool string, status int, detail string) *GatewayError {
	return &GatewayError{
		Kind:       KindToolError,
		StatusCode: status,
		Message:    fmt.Sprintf("tool %q: %s", tool, detail),
		Retryable:  true,
	}
}
