// Package fault defines the typed failure kinds surfaced by dispatch
// operations. Precondition failures are ordinary values, not panics: every
// operation either commits fully or returns one of these kinds with no state
// change.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and for the HTTP layer.
type Kind string

const (
	// KindUnauthenticated means no caller identity was supplied.
	KindUnauthenticated Kind = "unauthenticated"
	// KindInvalidArgument means the call was malformed (e.g. missing requestId).
	KindInvalidArgument Kind = "invalid_argument"
	// KindNotFound means the request or its ranked list does not exist.
	KindNotFound Kind = "not_found"
	// KindPermissionDenied means the caller is not the owner or not the
	// currently asked volunteer.
	KindPermissionDenied Kind = "permission_denied"
	// KindInvalidState means the request's status does not admit the
	// transition.
	KindInvalidState Kind = "invalid_state"
	// KindRankingFormat means the oracle's output failed strict shape
	// validation.
	KindRankingFormat Kind = "ranking_format"
	// KindUpstreamUnavailable means the oracle call itself failed.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindInternal covers storage and other unexpected failures.
	KindInternal Kind = "internal"
)

// Error carries a Kind alongside a message and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a fault of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a fault of the given kind with err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
