package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so cloned instances compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined domain errors. NotFound deliberately does not distinguish a
// role/id mismatch from true absence so account existence never leaks
// across roles.
var (
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrInvalidRole         = New("INVALID_ROLE", http.StatusForbidden, "invalid role")
	ErrDenied              = New("DENIED", http.StatusForbidden, "permission denied")
	ErrInvalidScope        = New("INVALID_SCOPE", http.StatusBadRequest, "entity out of scope")
	ErrDuplicateSubmission = New("DUPLICATE_SUBMISSION", http.StatusConflict, "a submission already exists for this student and assessment")
	ErrNotCollected        = New("NOT_COLLECTED", http.StatusConflict, "assessment submissions have not been collected")
	ErrNotSubmitted        = New("NOT_SUBMITTED", http.StatusConflict, "no submission exists for this student and assessment")
	ErrOutOfRange          = New("OUT_OF_RANGE", http.StatusBadRequest, "score is outside the assessment total")
	ErrIncompleteGrading   = New("INCOMPLETE_GRADING", http.StatusConflict, "not every submission has been graded")

	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Denied builds a DENIED error carrying the exact rule-violation reason.
// Callers surface the reason verbatim in audit trails and denial responses.
func Denied(reason string) *Error {
	return Clone(ErrDenied, reason)
}
