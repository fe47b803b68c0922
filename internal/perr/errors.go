// Package perr defines the pipeline's error taxonomy (spec §7) as typed,
// wrappable error kinds so phase code can branch on errors.Is/errors.As
// instead of parsing error strings.
package perr

import "errors"

// Kind is one of the named failure categories from spec §7.
type Kind string

const (
	KindConfigInvalid         Kind = "ConfigInvalid"
	KindEnvVarUnresolved      Kind = "EnvVarUnresolved"
	KindSourceFetchFailed     Kind = "SourceFetchFailed"
	KindItemParseFailed       Kind = "ItemParseFailed"
	KindLLMTransient          Kind = "LLMTransient"
	KindLLMFailed             Kind = "LLMFailed"
	KindReasoningUnavailable  Kind = "ReasoningUnavailable"
	KindOutputParseFailed     Kind = "OutputParseFailed"
	KindImageFailed           Kind = "ImageFailed"
	KindWriteFailed           Kind = "WriteFailed"
)

// Error is a typed pipeline error carrying a Kind and an optional
// underlying cause.
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

// New constructs an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Is reports whether err (or something it wraps) is a pipeline Error of
// the given kind.
func Is(err error, kind Kind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// Fatal reports whether a Kind always terminates the run (as opposed to
// degrading a phase to partial/fallback).
func Fatal(kind Kind) bool {
	switch kind {
	case KindConfigInvalid, KindEnvVarUnresolved, KindReasoningUnavailable, KindWriteFailed:
		return true
	default:
		return false
	}
}
