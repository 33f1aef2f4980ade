package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation_error"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInvalidState ErrorKind = "invalid_state"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInternal     ErrorKind = "internal_error"
)

// AppError is the error type every handler surfaces to clients.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *AppError {
	return newError(KindValidation, format, args...)
}

func Unauthorized(format string, args ...any) *AppError {
	return newError(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *AppError {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...any) *AppError {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *AppError {
	return newError(KindConflict, format, args...)
}

func InvalidState(format string, args ...any) *AppError {
	return newError(KindInvalidState, format, args...)
}

// Internal wraps a storage or integration failure.
func Internal(err error, message string) *AppError {
	return &AppError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf classifies any error; unknown errors are internal.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &appErr):
		return appErr.Kind
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindConflict
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// StoreError converts a gorm error into an AppError. what names the entity
// for not-found messages.
func StoreError(err error, what string) error {
	var appErr *AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, gorm.ErrRecordNotFound):
		return NotFound("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &AppError{Kind: KindConflict, Message: what + " already exists", Err: err}
	}
	return Internal(err, "error accessing "+what)
}

var statusByKind = map[ErrorKind]int{
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindInvalidState: http.StatusUnprocessableEntity,
	KindRateLimited:  http.StatusTooManyRequests,
	KindInternal:     http.StatusInternalServerError,
}

func HTTPStatus(kind ErrorKind) int {
	if code, ok := statusByKind[kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Code    ErrorKind `json:"code"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
}

// Responder writes JSON bodies and errors. Verbose adds the wrapped cause to
// error bodies and is meant for non-production configurations only.
type Responder struct {
	Verbose bool
}

func (rs Responder) Error(w http.ResponseWriter, err error) {
	kind := KindOf(err)
	body := errorBody{Code: kind, Message: "internal server error"}

	var appErr *AppError
	if errors.As(err, &appErr) {
		body.Message = appErr.Message
		if rs.Verbose && appErr.Err != nil {
			body.Detail = appErr.Err.Error()
		}
	} else if kind == KindNotFound {
		body.Message = "not found"
	} else if kind == KindConflict {
		body.Message = "already exists"
	}
	if kind == KindInternal {
		log.Printf("internal error: %v", err)
		if rs.Verbose && body.Detail == "" {
			body.Detail = err.Error()
		}
	}

	rs.JSON(w, HTTPStatus(kind), map[string]errorBody{"error": body})
}

func (rs Responder) JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}
