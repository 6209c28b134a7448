package domain

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind is the closed taxonomy of error kinds surfaced by the core.
// It plays the role that a dynamically-typed exception hierarchy would
// play in a looser language: every failure path in this module is
// required to resolve to exactly one of these kinds before it crosses a
// component boundary.
type ErrorKind string

const (
	KindTransientUnavailable ErrorKind = "transient_unavailable"
	KindRateLimited          ErrorKind = "rate_limited"
	KindAuthMissing          ErrorKind = "auth_missing"
	KindNotSupported         ErrorKind = "not_supported"
	KindPermanentSchema      ErrorKind = "permanent_schema"
	KindValidation           ErrorKind = "validation"
	KindCancelled            ErrorKind = "cancelled"
	KindStorageIO            ErrorKind = "storage_io"
	KindInternal             ErrorKind = "internal"
)

// Retryable reports whether the Fetch Coordinator should retry a call that
// failed with this kind propagation column.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransientUnavailable, KindRateLimited:
		return true
	default:
		return false
	}
}

// Error is the single error type returned across component boundaries.
// It wraps an underlying cause with a closed Kind, the source that
// produced it (when applicable), and an optional server-suggested retry
// delay (set only for KindRateLimited).
type Error struct {
	Kind       ErrorKind
	Source     string
	RetryAfter float64 // seconds; zero when unset
	Err        error
}

func (e *Error) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error of the given kind wrapping cause.
func NewError(kind ErrorKind, source string, cause error) *Error {
	return &Error{Kind: kind, Source: source, Err: cause}
}

// NewRateLimited constructs a KindRateLimited error carrying the
// server-suggested retry delay, if any.
func NewRateLimited(source string, retryAfterSeconds float64, cause error) *Error {
	return &Error{Kind: KindRateLimited, Source: source, RetryAfter: retryAfterSeconds, Err: cause}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal for
// errors that were never classified — an unmapped error reaching this
// function is itself a bug in the component that raised it.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, errCancelledSentinel) {
		return KindCancelled
	}
	return KindInternal
}

// ClassifyGRPCStatus maps a gRPC status error to an ErrorKind. Some
// provider sources (thegraph's gateway among them) front their REST
// surface with an internal gRPC transport, and its errors occasionally
// leak through as a wrapped *status.Status rather than an HTTP status
// code; ok is false when err carries no gRPC status at all, in which
// case the caller should fall through to its own classification.
func ClassifyGRPCStatus(err error) (kind ErrorKind, ok bool) {
	st, has := status.FromError(err)
	if !has {
		return "", false
	}
	switch st.Code() {
	case codes.OK:
		return "", false
	case codes.Unavailable, codes.Aborted, codes.ResourceExhausted:
		return KindTransientUnavailable, true
	case codes.DeadlineExceeded:
		return KindTransientUnavailable, true
	case codes.Canceled:
		return KindCancelled, true
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindAuthMissing, true
	case codes.Unimplemented, codes.NotFound:
		return KindNotSupported, true
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return KindValidation, true
	default:
		return KindInternal, true
	}
}

var errCancelledSentinel = errors.New("cancelled")

// ErrCancelled is returned verbatim by operations aborted via context
// cancellation or deadline, so callers can errors.Is-match it regardless
// of which component raised it.
var ErrCancelled = NewError(KindCancelled, "", errCancelledSentinel)
