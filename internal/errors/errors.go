// Package errors defines the service error taxonomy shared by the game core
// and its HTTP boundary.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Code identifies a stable error category.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeInsufficientCapital Code = "INSUFFICIENT_CAPITAL"
	CodeEventActive         Code = "EVENT_ACTIVE"
	CodeInvalidChoice       Code = "INVALID_CHOICE"
	CodeStorageFailure      Code = "STORAGE_FAILURE"
	CodeValidation          Code = "VALIDATION"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeInternal            Code = "INTERNAL"
)

// ServiceError carries a category, a stable user-facing message and the HTTP
// status the boundary should render.
type ServiceError struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is allows errors.Is comparisons against sentinel ServiceErrors by code.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if !stderrors.As(target, &se) {
		return false
	}
	return e.Code == se.Code
}

// WithDetails attaches a key/value pair for diagnostics.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NotFound reports a missing session, policy, event or player.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// Conflict reports an attempt to create a resource that already exists.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// InsufficientCapital reports a policy the player cannot afford.
func InsufficientCapital(message string) *ServiceError {
	return &ServiceError{Code: CodeInsufficientCapital, Message: message, HTTPStatus: http.StatusBadRequest}
}

// EventActive reports a turn-end attempt while an event is pending.
func EventActive(message string) *ServiceError {
	return &ServiceError{Code: CodeEventActive, Message: message, HTTPStatus: http.StatusBadRequest}
}

// InvalidChoice reports a choice id that does not belong to the active event.
func InvalidChoice(message string) *ServiceError {
	return &ServiceError{Code: CodeInvalidChoice, Message: message, HTTPStatus: http.StatusBadRequest}
}

// StorageFailure wraps a transient storage error; the only retryable kind.
func StorageFailure(err error) *ServiceError {
	return &ServiceError{Code: CodeStorageFailure, Message: "storage failure", HTTPStatus: http.StatusInternalServerError, Err: err}
}

// Validation reports malformed caller input.
func Validation(message string) *ServiceError {
	return &ServiceError{Code: CodeValidation, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized reports missing or failed authentication.
func Unauthorized(message string) *ServiceError {
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// InvalidToken reports a token that failed verification.
func InvalidToken(err error) *ServiceError {
	return &ServiceError{Code: CodeInvalidToken, Message: "invalid or expired token", HTTPStatus: http.StatusForbidden, Err: err}
}

// Internal wraps an unexpected error.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Err: err}
}

// GetServiceError extracts a *ServiceError from an error chain, or nil.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
