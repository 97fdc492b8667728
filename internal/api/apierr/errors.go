package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcoot/lobbynet/internal/model"
	"github.com/mcoot/lobbynet/internal/services/auth"
	"github.com/mcoot/lobbynet/internal/services/directory"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotHost            = "NOT_HOST"
	CodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeSessionFull        = "SESSION_FULL"
	CodeNoSessionAvailable = "NO_SESSION_AVAILABLE"
	CodeAlreadyMember      = "ALREADY_MEMBER"
	CodeNotMember          = "NOT_MEMBER"
	CodeInvalidCapacity    = "INVALID_CAPACITY"
	CodeInvalidName        = "INVALID_NAME"
	CodeInvalidDisplayName = "INVALID_DISPLAY_NAME"
	CodeJoinCodesExhausted = "JOIN_CODES_EXHAUSTED"
	CodeUsernameExists     = "USERNAME_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// mapping ties a domain error to its wire representation
type mapping struct {
	err     error
	status  int
	code    string
	message string
}

var mappings = []mapping{
	{model.ErrIdentityNotFound, http.StatusNotFound, CodeIdentityNotFound, "Identity not found"},
	{model.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound, "Session not found"},
	{model.ErrSessionFull, http.StatusConflict, CodeSessionFull, "Session is full"},
	{model.ErrNoSessionAvailable, http.StatusNotFound, CodeNoSessionAvailable, "No joinable session available"},
	{model.ErrAlreadyMember, http.StatusConflict, CodeAlreadyMember, "Already a member of this session"},
	{model.ErrNotMember, http.StatusNotFound, CodeNotMember, "Not a member of this session"},
	{model.ErrNotHost, http.StatusForbidden, CodeNotHost, "Only the host can perform this action"},
	{directory.ErrInvalidCapacity, http.StatusBadRequest, CodeInvalidCapacity, "Invalid session capacity"},
	{directory.ErrInvalidName, http.StatusBadRequest, CodeInvalidName, "Session name is too long"},
	{directory.ErrCodeExhausted, http.StatusServiceUnavailable, CodeJoinCodesExhausted, "Could not allocate a join code"},
	{auth.ErrInvalidDisplayName, http.StatusBadRequest, CodeInvalidDisplayName, "Display name must be 1-32 characters"},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid username or password"},
	{auth.ErrInvalidSession, http.StatusUnauthorized, CodeUnauthorized, "Invalid or expired session"},
	{auth.ErrUsernameExists, http.StatusConflict, CodeUsernameExists, "Username already exists"},
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	for _, m := range mappings {
		if errors.Is(err, m.err) {
			return &httpError{m.status, APIError{m.code, m.message}}
		}
	}
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}

// ToError converts a decoded error response back into a domain error
// Unknown codes produce a plain error carrying the status and message.
func ToError(status int, apiError APIError) error {
	for _, m := range mappings {
		if m.code == apiError.Code {
			return fmt.Errorf("%w: %s", m.err, apiError.Message)
		}
	}
	return fmt.Errorf("directory returned %d %s: %s", status, apiError.Code, apiError.Message)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthorized, "Authentication required"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
