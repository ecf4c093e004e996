// Package apierr defines the tagged error type returned by every admission
// gate and by the token lifecycle manager. Handlers and the MCP layer switch
// on the Kind instead of matching error strings; anything that is not an
// *Error is treated as an internal fault.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a domain failure class.
type Kind string

const (
	// KindUnauthenticated: missing, malformed or unknown API key. Terminal.
	KindUnauthenticated Kind = "unauthenticated"
	// KindQuotaExceeded: daily tier quota reached. Terminal until the next
	// UTC day boundary.
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindForbidden: feature not entitled for the tenant's tier.
	KindForbidden Kind = "forbidden"
	// KindInvalidState: OAuth state token unknown or already consumed.
	KindInvalidState Kind = "invalid_state"
	// KindReconnectRequired: no usable social token; carries a connect URL.
	KindReconnectRequired Kind = "reconnect_required"
	// KindUpstreamUnavailable: provider network/HTTP failure, distinct from
	// credential failures.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
)

// Error is the structured, user-facing failure payload.
type Error struct {
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	ConnectURL string `json:"connect_url,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Reconnect builds a ReconnectRequired error carrying the connect URL the
// caller can use to re-establish the provider credential.
func Reconnect(message, connectURL string) *Error {
	return &Error{Kind: KindReconnectRequired, Message: message, ConnectURL: connectURL}
}

// As unwraps err into an *Error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := As(err); ok {
		return e.Kind == kind
	}
	return false
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState:
		return http.StatusBadRequest
	case KindReconnectRequired:
		return http.StatusFailedDependency
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes err as a JSON error response. Non-*Error values are
// reported as a generic 500 without leaking internals.
func WriteJSON(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if e, ok := As(err); ok {
		w.WriteHeader(e.HTTPStatus())
		json.NewEncoder(w).Encode(e)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"kind":    "internal",
		"message": "internal server error",
	})
}
