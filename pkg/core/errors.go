package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error shape surfaced by the gateway.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrInvalidRequest is a malformed or out-of-contract request: bad mode,
	// bad index, bad token shape. Terminal, surfaced to the client.
	ErrInvalidRequest ErrorType = "invalid_request_error"

	// ErrAuthentication is a missing or invalid gateway credential.
	ErrAuthentication ErrorType = "authentication_error"

	// ErrNotFound means an interview or response record is absent. Distinct
	// from transient storage failure.
	ErrNotFound ErrorType = "not_found_error"

	// ErrCollaborator means an outbound call (session store, LLM, STT, TTS,
	// persistence) failed or timed out. Recoverable: callers degrade where
	// the feature is advisory and surface it where the feature is required.
	ErrCollaborator ErrorType = "collaborator_unavailable"

	// ErrMalformedOutput means a generation or scoring collaborator returned
	// output that did not parse into the expected shape.
	ErrMalformedOutput ErrorType = "malformed_collaborator_output"

	// ErrStateConflict is a concurrent-write race on response progress. The
	// per-response single-writer discipline keeps this out of normal
	// operation.
	ErrStateConflict ErrorType = "state_conflict"

	// ErrAPI is an internal gateway failure.
	ErrAPI ErrorType = "api_error"
)

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewCollaboratorError wraps a failed outbound call to a named collaborator.
func NewCollaboratorError(collaborator string, underlying error) *Error {
	return &Error{
		Type:    ErrCollaborator,
		Message: fmt.Sprintf("%s: %v", collaborator, underlying),
		Code:    collaborator,
	}
}

// NewMalformedOutputError reports unusable collaborator output.
func NewMalformedOutputError(collaborator, message string) *Error {
	return &Error{
		Type:    ErrMalformedOutput,
		Message: message,
		Code:    collaborator,
	}
}

// NewStateConflictError creates a state conflict error.
func NewStateConflictError(message string) *Error {
	return &Error{
		Type:    ErrStateConflict,
		Message: message,
	}
}

// NewAPIError creates a generic internal error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsRetryable reports whether a caller may safely retry the operation that
// produced the error. Only collaborator outages qualify; the gateway itself
// never retries (idempotent retries are the caller's choice).
func (e *Error) IsRetryable() bool {
	return e.Type == ErrCollaborator
}

// IsRetryable reports whether err carries a retryable canonical error.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) && ce != nil {
		return ce.IsRetryable()
	}
	return false
}
