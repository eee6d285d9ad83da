// Package errs defines the error kinds surfaced by the confidant pipeline.
//
// Every failure that crosses a collaborator boundary is tagged with a stable
// Code so transports can map it to a status and callers can branch on it
// without parsing messages.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Code is a stable, user-visible error identifier.
type Code string

const (
	// EmbeddingFailure means no vector could be computed; no cache decision is possible.
	EmbeddingFailure Code = "embedding_failure"

	// GenerationFailure means the language model returned an error.
	GenerationFailure Code = "generation_failure"

	// GenerationTimeout means the language model did not answer in time.
	GenerationTimeout Code = "generation_timeout"

	// TranscriptionFailure means the audio could not be turned into text.
	TranscriptionFailure Code = "transcription_failure"

	// TranslationFailure is non-fatal; callers degrade to the pivot language.
	TranslationFailure Code = "translation_failure"

	// SynthesisFailure is non-fatal; the text response is still returned.
	SynthesisFailure Code = "synthesis_failure"

	// PersistenceFailure covers index and ledger writes. Non-fatal for requests.
	PersistenceFailure Code = "persistence_failure"

	// CacheDrift means the index references a record the ledger does not have.
	CacheDrift Code = "cache_drift"

	// InvalidRequest means the caller sent something we cannot process.
	InvalidRequest Code = "invalid_request"
)

// Error wraps an underlying error with its Code and the operation that failed.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New tags err with code. A nil err still produces an error carrying the code.
func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Newf is New with a formatted message as the underlying error.
func Newf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

// CodeOf returns the outermost Code in err's chain, or "" if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Generation classifies a model error as a timeout or a plain failure.
func Generation(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return New(GenerationTimeout, op, err)
	}
	return New(GenerationFailure, op, err)
}
