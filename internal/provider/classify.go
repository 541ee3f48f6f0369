package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	gwerrors "github.com/cognigate/cognigate/pkg/errors"
)

// permanentMarkers are upstream error substrings that prove the
// credential itself is dead. Matched case-insensitively against the
// error body; a hit retires the key regardless of status code.
var permanentMarkers = []string{
	"invalid api key",
	"incorrect api key",
	"api key not valid",
	"api key expired",
	"invalid x-api-key",
	"authentication_error",
	"account deactivated",
	"organization has been disabled",
	"access terminated",
}

// contentMarkers are upstream error substrings that prove the request
// body is at fault. These surface to the client immediately: rotating
// credentials cannot fix a bad request.
var contentMarkers = []string{
	"content_policy",
	"content management policy",
	"safety system",
	"maximum context length",
	"context_length_exceeded",
	"string too long",
	"unsupported parameter",
	"invalid_request_error",
}

func matchesAny(body string, markers []string) bool {
	lowered := strings.ToLower(body)
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return true
		}
	}
	return false
}

// extractMessage pulls a human-readable message out of a provider error
// body, falling back to the raw body truncated to a sane length.
func extractMessage(body []byte) string {
	var openaiShape struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &openaiShape); err == nil && openaiShape.Error.Message != "" {
		return openaiShape.Error.Message
	}

	var flatShape struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(body, &flatShape); err == nil {
		if flatShape.Message != "" {
			return flatShape.Message
		}
		if flatShape.Detail != "" {
			return flatShape.Detail
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512]
	}
	if s == "" {
		s = "upstream returned an empty error body"
	}
	return s
}

// ClassifyStatus maps an upstream HTTP error response to a gateway
// error kind. Marker matches win over status codes: a 400 carrying an
// auth marker retires the key, a 403 carrying a content marker
// surfaces to the client.
func ClassifyStatus(providerName string, status int, body []byte) *gwerrors.GatewayError {
	message := extractMessage(body)
	raw := string(body)

	if matchesAny(raw, permanentMarkers) {
		return gwerrors.NewCredentialPermanent(providerName, status, message)
	}
	if matchesAny(raw, contentMarkers) {
		return gwerrors.NewRequestContentInvalid(providerName, message)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return gwerrors.NewCredentialPermanent(providerName, status, message)
	case status == http.StatusTooManyRequests:
		return gwerrors.NewCredentialTransient(providerName, status, message)
	case status == http.StatusBadRequest:
		return gwerrors.NewRequestContentInvalid(providerName, message)
	case status >= 500:
		return gwerrors.NewCredentialTransient(providerName, status, message)
	default:
		return gwerrors.NewCredentialTransient(providerName, status, message)
	}
}

// ClassifyTransport maps a failed HTTP round trip (connect refused, DNS,
// timeout, reset) to a transient credential error so the executor
// quarantines instead of retiring. Context cancellation passes through
// untouched: the client went away, not the credential.
func ClassifyTransport(providerName string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return gwerrors.NewCredentialTransient(providerName, 0, err.Error())
}
