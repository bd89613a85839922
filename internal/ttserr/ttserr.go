// Package ttserr defines the typed error kinds the synthesis pipeline
// produces and distinguishes, carrying enough structure for the
// router to branch on failure kind (transient vs definitive) and for
// the HTTP surface to map a kind onto a status code.
package ttserr

import (
	"errors"
	"fmt"
)

// Kind identifies one of the error categories the pipeline recognizes.
type Kind string

const (
	// KindInvalidRequest covers empty input, unknown format, malformed JSON.
	KindInvalidRequest Kind = "invalid_request"
	// KindVoiceUnknown means no adapter claims the requested voice.
	KindVoiceUnknown Kind = "voice_unknown"
	// KindChunkTooLarge means clause-level splitting still exceeds max_words.
	KindChunkTooLarge Kind = "chunk_too_large"
	// KindBackendTransient covers network errors, 5xx responses, timeouts.
	// The router retries the next adapter in the chain.
	KindBackendTransient Kind = "backend_transient"
	// KindBackendDefinitive covers refused auth or a backend-specific voice
	// rejection. The router skips to the next adapter without retrying
	// this one.
	KindBackendDefinitive Kind = "backend_definitive"
	// KindStitchFailure covers sample-rate resolution or buffer decode failures.
	KindStitchFailure Kind = "stitch_failure"
	// KindEncodeFailure covers transcoder process failures.
	KindEncodeFailure Kind = "encode_failure"
	// KindCancelled covers client disconnect or deadline expiry.
	KindCancelled Kind = "cancelled"
)

// Error is the typed error carried through the pipeline. Backend is
// set by adapters so the router and logs can attribute a failure.
type Error struct {
	Kind    Kind
	Backend string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Backend != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Backend, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(kind Kind, backend string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Backend: backend, Message: err.Error(), Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is
// a *Error, defaulting to KindBackendTransient for unrecognized errors
// so unknown adapter failures still fail over rather than aborting the
// chain outright.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindBackendTransient
}

// IsTransient reports whether err should move the failover chain on
// to the next adapter: true for both backend failure kinds. Only
// KindBackendTransient also counts against the adapter's health.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindBackendTransient, KindBackendDefinitive:
		return true
	default:
		return false
	}
}
