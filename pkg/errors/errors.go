package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors the auth service maps onto HTTP statuses.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnverified     = errors.New("account not verified")
	ErrTokenInvalid   = errors.New("token invalid or expired")
	ErrDeliveryFailed = errors.New("delivery failed")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

// AppError carries a machine readable code and the HTTP status it maps to.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(code string, status int, sentinel error, message string) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: sentinel}
}

// NotFound creates a 404 error. An empty id yields "<resource> not found".
func NotFound(resource, id string) *AppError {
	msg := fmt.Sprintf("%s not found", resource)
	if id != "" {
		msg = fmt.Sprintf("%s %s not found", resource, id)
	}
	return newAppError("NOT_FOUND", http.StatusNotFound, ErrNotFound, msg)
}

// AlreadyExists reports a duplicate value. Duplicates are client errors (400).
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError("ALREADY_EXISTS", http.StatusBadRequest, ErrAlreadyExists,
		fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return newAppError("INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput, message)
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return newAppError("UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized, message)
}

// Unverified is returned when a correct password belongs to an account whose
// email has not been confirmed.
func Unverified(message string) *AppError {
	return newAppError("UNVERIFIED", http.StatusUnauthorized, ErrUnverified, message)
}

// TokenInvalid covers malformed, expired, revoked or unknown tokens.
func TokenInvalid(message string) *AppError {
	return newAppError("TOKEN_INVALID", http.StatusUnauthorized, ErrTokenInvalid, message)
}

// DeliveryFailed reports that an outbound email could not be sent.
func DeliveryFailed(err error) *AppError {
	e := newAppError("DELIVERY_FAILED", http.StatusInternalServerError, ErrDeliveryFailed,
		"email could not be sent, please try again later")
	if err != nil {
		e.Err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return e
}

// RateLimited creates a 429 error.
func RateLimited(message string) *AppError {
	return newAppError("RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited, message)
}

// Internal creates a 500 error. The wrapped cause is never exposed to clients.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrUnverified), errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrServiceUnavail):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
