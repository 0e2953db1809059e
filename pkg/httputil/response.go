// Package httputil provides the JSON envelope, error-to-status mapping,
// auth cookies and common HTTP middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/campusgate/pkg/auth"
	"github.com/platinummonkey/campusgate/pkg/observability"
	"github.com/platinummonkey/campusgate/pkg/validation"
)

// Response is the envelope every API response is wrapped in
type Response struct {
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	Success    bool        `json:"success"`
}

// NewResponse builds an envelope; Success is derived from the status
func NewResponse(status int, message string, data interface{}) Response {
	return Response{
		StatusCode: status,
		Message:    message,
		Data:       data,
		Success:    status >= 200 && status < 300,
	}
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteResponse writes data wrapped in the envelope
func WriteResponse(w http.ResponseWriter, status int, message string, data interface{}) {
	_ = WriteJSON(w, status, NewResponse(status, message, data))
}

// WriteSuccess writes a 200 envelope
func WriteSuccess(w http.ResponseWriter, message string, data interface{}) {
	WriteResponse(w, http.StatusOK, message, data)
}

// WriteCreated writes a 201 envelope
func WriteCreated(w http.ResponseWriter, message string, data interface{}) {
	WriteResponse(w, http.StatusCreated, message, data)
}

// WriteErrorMessage writes a failed envelope with no data
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteResponse(w, status, message, nil)
}

// Message used for every authentication failure so the sub-case is not revealed
const unauthorizedMessage = "Unauthorized"

const internalErrorMessage = "Internal server error"

// StatusFor maps an error to its HTTP status and client-safe message
func StatusFor(err error) (int, string) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case auth.IsTokenError(err), errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusUnauthorized, unauthorizedMessage
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, auth.ErrInvalidAPIKey):
		return http.StatusForbidden, "Invalid or expired API key"
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, auth.ErrRefreshTokenMismatch):
		return http.StatusForbidden, "Refresh token mismatch or expired"
	case errors.Is(err, auth.ErrConflict):
		return http.StatusConflict, clientMessage(err, "Resource already exists")
	case errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound, clientMessage(err, "Not found")
	case errors.Is(err, auth.ErrInvalidRole):
		return http.StatusBadRequest, "Invalid role"
	case errors.Is(err, auth.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests"
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, clientMessage(err, "Bad request")
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

// ClientError is an error that carries its own client-facing message. It
// still matches its Kind with errors.Is.
type ClientError struct {
	Kind    error
	Message string
}

func (e *ClientError) Error() string { return e.Message }

func (e *ClientError) Unwrap() error { return e.Kind }

// ErrBadRequest is the kind for request errors that are not field validation
// failures
var ErrBadRequest = errors.New("bad request")

// BadRequest returns an ErrBadRequest carrying message
func BadRequest(message string) error {
	return &ClientError{Kind: ErrBadRequest, Message: message}
}

// NotFound returns an ErrNotFound carrying message
func NotFound(message string) error {
	return &ClientError{Kind: auth.ErrNotFound, Message: message}
}

// Conflict returns an ErrConflict carrying message
func Conflict(message string) error {
	return &ClientError{Kind: auth.ErrConflict, Message: message}
}

func clientMessage(err error, fallback string) string {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return fallback
}

// WriteError maps err to a status and writes the envelope. Server errors are
// logged with the request logger and never echoed to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("Request failed")
	}
	WriteErrorMessage(w, status, message)
}

// WriteBadRequest writes a 400 envelope
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a 404 envelope
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteMethodNotAllowed writes a 405 envelope
func WriteMethodNotAllowed(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusMethodNotAllowed, message)
}

// WriteInternalError writes a 500 envelope without exposing err
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, internalErrorMessage)
}
