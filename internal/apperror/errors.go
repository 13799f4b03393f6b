// Package apperror provides the domain error types for the data gateway.
// These errors carry an HTTP status code and a caller-safe message. The Echo
// error handler maps them to HTTP responses automatically; any error that is
// NOT one of these types is treated as unexpected and escalated to the
// operator log instead of being shown to the caller.
//
// The BadRequest messages produced by the request pipeline are part of the
// wire contract — existing client SDKs match on them — so they must never
// be reworded.
package apperror

import (
	"fmt"
	"net/http"
)

// RuleFailure identifies a single data rule that rejected an entity.
// Failures are reported to the caller in the same order as the submitted
// entities, so failure i always describes input entity i.
type RuleFailure struct {
	// Rule is the configured name of the failing rule.
	Rule string `json:"rule"`

	// Reason is an optional human-readable explanation.
	Reason string `json:"reason,omitempty"`
}

// AppError is the base error type for all caller-facing errors. It carries
// an HTTP status code, a machine-readable classifier, and a message safe to
// show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 400, 403, 404).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "bad_request").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Failures carries the ordered per-entity rule failures for
	// rules_failed / save_failed errors. Nil for all other types.
	Failures []RuleFailure `json:"failures,omitempty"`

	// Internal holds the underlying error for logging. Never exposed.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// --- Constructors ---

// NewBadRequest creates a 400 Bad Request error. The message becomes part
// of the response body verbatim.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "bad_request",
		Message: message,
	}
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "unauthorized",
		Message: message,
	}
}

// NewForbidden creates a 403 Forbidden error.
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    "forbidden",
		Message: message,
	}
}

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    "not_found",
		Message: message,
	}
}

// NewRulesFailed creates the 403 error returned when one or more submitted
// entities are rejected by the data rules. The failure list is ordered to
// match the submitted entities; the whole batch is rejected, nothing is
// persisted.
func NewRulesFailed(failures []RuleFailure) *AppError {
	return &AppError{
		Code:     http.StatusForbidden,
		Type:     "rules_failed",
		Message:  "One or more data rules failed",
		Failures: failures,
	}
}

// NewSaveFailed creates the 403 error returned when the store rejects a
// write after the rules accepted it. Treated identically to a rule failure
// at the HTTP boundary.
func NewSaveFailed(err error) *AppError {
	return &AppError{
		Code:     http.StatusForbidden,
		Type:     "save_failed",
		Message:  "Saving Entity Failed",
		Internal: err,
	}
}

// NewInternal creates a 500 error. The real error is stored in Internal for
// the operator log but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe message from an error. For anything
// that is not an AppError, a generic message is returned so internal details
// (queries, table names, stack traces) never leak.
func SafeMessage(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for any
// other error type.
func SafeCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
