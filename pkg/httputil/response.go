package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/sodmaq/auth-service/pkg/errors"
	"github.com/sodmaq/auth-service/pkg/logger"
	"github.com/sodmaq/auth-service/pkg/validator"
)

// Response is the JSON envelope every endpoint answers with.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Message is the payload of endpoints that only report an outcome.
type Message struct {
	Message string `json:"message"`
}

// sentinelResponses maps bare sentinel errors to client-facing codes. Errors
// not listed here are reported as internal errors.
var sentinelResponses = []struct {
	err     error
	code    string
	message string
}{
	{apperrors.ErrNotFound, "NOT_FOUND", "resource not found"},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS", "resource already exists"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", "invalid input"},
	{apperrors.ErrUnauthorized, "UNAUTHORIZED", "Not authorized"},
	{apperrors.ErrUnverified, "UNVERIFIED", "account not verified"},
	{apperrors.ErrTokenInvalid, "TOKEN_INVALID", "token is invalid or has expired"},
	{apperrors.ErrRateLimited, "RATE_LIMITED", "too many requests"},
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteData wraps v in the data envelope.
func WriteData(w http.ResponseWriter, status int, v any) {
	WriteJSON(w, status, Response{Data: v})
}

// WriteMessage answers with {"data":{"message":msg}}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteData(w, status, Message{Message: msg})
}

// WriteError renders err as an error envelope. AppErrors keep their code,
// message and status; bare sentinels map through sentinelResponses; anything
// else becomes a generic 500. Server-side failures are logged with the
// request-scoped logger when the RequestLogger middleware set one, otherwise
// with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	resp := &ErrorResponse{
		Code:      "INTERNAL_ERROR",
		Message:   "an internal error occurred",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}
	status := apperrors.HTTPStatus(err)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Code, resp.Message, status = appErr.Code, appErr.Message, appErr.Status
	} else {
		for _, s := range sentinelResponses {
			if errors.Is(err, s.err) {
				resp.Code, resp.Message = s.code, s.message
				break
			}
		}
	}

	if status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.String("code", resp.Code),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: resp})
}

// WriteValidationError answers 400 with per-field messages for a
// *validator.ValidationError and INVALID_INPUT for anything else, such as a
// malformed body.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}
