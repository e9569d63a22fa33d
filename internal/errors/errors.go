package errors

import (
	"fmt"
	"net/http"
)

// SpallError is the structured error type threaded through storage,
// pipeline, scope, and daemon operations up to the HTTP layer.
type SpallError struct {
	// Code is one of the stable strings in codes.go (e.g. "note.not_found").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (NotFound, Conflict, Internal, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *SpallError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SpallError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code, so
// errors.Is() works against a sentinel SpallError built with New.
func (e *SpallError) Is(target error) bool {
	if t, ok := target.(*SpallError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SpallError) WithDetail(key, value string) *SpallError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a SpallError with the given code and message. Category,
// severity, and retryable are derived from the code.
func New(code string, message string, cause error) *SpallError {
	return &SpallError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SpallError from an existing error, using its message.
func Wrap(code string, err error) *SpallError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// NotFound builds one of the four not-found kinds named in spec.md §7.
func NotFound(code string, entity string, id any) *SpallError {
	return New(code, fmt.Sprintf("%s not found: %v", entity, id), nil)
}

// DuplicateContent builds note.duplicate_content.
func DuplicateContent(path string) *SpallError {
	return New(CodeNoteDuplicateContent, fmt.Sprintf("content already exists in another note (blocked add/upsert of %q without dupe=true)", path), nil)
}

// AlreadyExists builds note.already_exists.
func AlreadyExists(corpusID int64, path string) *SpallError {
	return New(CodeNoteAlreadyExists, fmt.Sprintf("note already exists at corpus=%d path=%q", corpusID, path), nil)
}

// Cancelled builds storage.cancelled, swallowed by the SSE adapter.
func Cancelled() *SpallError {
	return New(CodeStorageCancelled, "operation cancelled", nil)
}

// Invalid builds a validation failure for malformed request input.
func Invalid(message string) *SpallError {
	return New(CodeInvalidInput, message, nil)
}

// Internal wraps an unexpected failure as the generic catch-all code.
func Internal(message string, cause error) *SpallError {
	return New(CodeGeneric, message, cause)
}

// IsRetryable reports whether err is a SpallError with Retryable set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SpallError); ok {
		return se.Retryable
	}
	return false
}

// IsCancelled reports whether err is storage.cancelled.
func IsCancelled(err error) bool {
	se, ok := err.(*SpallError)
	return ok && se.Code == CodeStorageCancelled
}

// GetCode extracts the error code from a SpallError, or "" otherwise.
func GetCode(err error) string {
	if se, ok := err.(*SpallError); ok {
		return se.Code
	}
	return ""
}

// IsCode reports whether err is a SpallError carrying the given code.
func IsCode(err error, code string) bool {
	return GetCode(err) == code
}

// HTTPStatus maps an error code to the route-boundary status per
// spec.md §7: the four not-found kinds map to 404; everything else,
// including the generic catch-all, maps to 500. Cancellations never
// reach this mapping — they're swallowed inside streaming handlers
// before a response is written.
func HTTPStatus(code string) int {
	switch code {
	case CodeCorpusNotFound, CodeWorkspaceNotFound, CodeQueryNotFound, CodeNoteNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
