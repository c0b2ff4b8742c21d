// Package apperr provides a typed error taxonomy shared across every
// domain package, so HTTP handlers funnel through a single error-to-status
// mapping instead of scattering status-code literals per handler.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the broad category of a domain error.
type Kind string

const (
	Unauthenticated     Kind = "unauthenticated"
	Forbidden           Kind = "forbidden"
	NotFound            Kind = "not_found"
	AlreadyExists       Kind = "already_exists"
	ValidationError     Kind = "validation_error"
	QuotaExceeded       Kind = "quota_exceeded"
	UpstreamUnavailable Kind = "upstream_unavailable"
	UpstreamRejected    Kind = "upstream_rejected"
	Timeout             Kind = "timeout"
	InternalError       Kind = "internal_error"
)

// statusByKind maps each Kind to the HTTP status code it surfaces as.
var statusByKind = map[Kind]int{
	Unauthenticated:     http.StatusUnauthorized,
	Forbidden:           http.StatusForbidden,
	NotFound:            http.StatusNotFound,
	AlreadyExists:       http.StatusConflict,
	ValidationError:     http.StatusBadRequest,
	QuotaExceeded:       http.StatusTooManyRequests,
	UpstreamUnavailable: http.StatusBadGateway,
	UpstreamRejected:    http.StatusUnprocessableEntity,
	Timeout:             http.StatusGatewayTimeout,
	InternalError:       http.StatusInternalServerError,
}

// Error is a domain error carrying a Kind, a machine-readable code, a
// human message and optional structured details.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code for this error's Kind.
func (e *Error) Status() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// New creates a new Error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a new Error of the given kind, preserving cause for %w chains.
func Wrap(kind Kind, code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, cause: cause}
}

// WithDetails attaches structured details (e.g. validation field errors) and
// returns the same error for chaining.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// As extracts an *Error from err if present.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Status returns the HTTP status for any error: a wrapped *Error's status,
// or 500 for anything else.
func Status(err error) int {
	if e, ok := As(err); ok {
		return e.Status()
	}
	return http.StatusInternalServerError
}
