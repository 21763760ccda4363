package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched with Is. Every AppError built by the constructors below
// wraps one of them.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrConflict        = errors.New("resource conflict")
	ErrInternal        = errors.New("internal server error")
	ErrValidation      = errors.New("validation error")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("invalid token")
)

// Response codes
const (
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeBadRequest      = "BAD_REQUEST"
	CodeConflict        = "CONFLICT"
	CodeInternal        = "INTERNAL_ERROR"
	CodeValidation      = "VALIDATION_ERROR"
	CodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeTokenInvalid    = "TOKEN_INVALID"
)

// AppError is an error that knows how it is reported to API clients
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError that wraps no sentinel
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails replaces the details map
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail sets a single detail entry
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

func newSentinel(sentinel error, code, message string, status int) *AppError {
	return &AppError{Err: sentinel, Code: code, Message: message, StatusCode: status}
}

func NotFound(resource string) *AppError {
	return newSentinel(ErrNotFound, CodeNotFound, resource+" not found", http.StatusNotFound)
}

func Unauthorized(message string) *AppError {
	return newSentinel(ErrUnauthorized, CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(message string) *AppError {
	return newSentinel(ErrForbidden, CodeForbidden, message, http.StatusForbidden)
}

func BadRequest(message string) *AppError {
	return newSentinel(ErrBadRequest, CodeBadRequest, message, http.StatusBadRequest)
}

func Conflict(message string) *AppError {
	return newSentinel(ErrConflict, CodeConflict, message, http.StatusConflict)
}

func Internal(message string) *AppError {
	return newSentinel(ErrInternal, CodeInternal, message, http.StatusInternalServerError)
}

func Validation(details map[string]string) *AppError {
	return newSentinel(ErrValidation, CodeValidation, "validation failed", http.StatusBadRequest).WithDetails(details)
}

// PayloadTooLarge reports an upload or body over limit bytes. A limit of
// zero or less leaves the limit out of the message.
func PayloadTooLarge(what string, limit int64) *AppError {
	msg := what + " too large"
	if limit > 0 {
		msg = fmt.Sprintf("%s exceeds %d bytes", what, limit)
	}
	return newSentinel(ErrPayloadTooLarge, CodePayloadTooLarge, msg, http.StatusRequestEntityTooLarge)
}

func TokenExpired() *AppError {
	return newSentinel(ErrTokenExpired, CodeTokenExpired, "token has expired", http.StatusUnauthorized)
}

func TokenInvalid() *AppError {
	return newSentinel(ErrTokenInvalid, CodeTokenInvalid, "invalid token", http.StatusUnauthorized)
}

// AsAppError returns the first AppError in err's chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
