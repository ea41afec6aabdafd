// Package apperr defines the typed error kinds shared across the pipeline.
// Every failure that crosses a component boundary is wrapped in an *Error so
// the HTTP layer can map it to a status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry and status-code decisions.
type Kind string

const (
	// Validation is malformed or missing caller input. Not retried.
	Validation Kind = "VALIDATION_ERROR"
	// FileSize is a payload or duration ceiling violation. Not retried.
	FileSize Kind = "FILE_SIZE_ERROR"
	// Transcription covers vendor and parsing failures downstream of the
	// speech-to-text or language-model calls.
	Transcription Kind = "TRANSCRIPTION_ERROR"
	// Storage is ephemeral storage exhaustion or a full queue. Not retried.
	Storage Kind = "STORAGE_ERROR"
	// Database is a translation store lookup failure. Not retried.
	Database Kind = "DATABASE_ERROR"
)

// Error carries a kind alongside the message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a kind and message. Returns nil if err is nil.
// If err already carries a kind, that kind wins so the original
// classification survives layers of wrapping.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	if k, ok := KindOf(err); ok {
		kind = k
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// HTTPStatus maps an error to the status code the boundary should return.
// Unclassified errors map to 500.
func HTTPStatus(err error) int {
	k, ok := KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch k {
	case Validation:
		return http.StatusBadRequest
	case FileSize:
		return http.StatusRequestEntityTooLarge
	case Storage:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
