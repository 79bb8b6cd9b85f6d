// Package encerr defines the five error kinds of the encoder core's error
// handling design (spec §7) as wrapped sentinel values, following the
// bugVanisher-streamer convention of wrapping with github.com/pkg/errors
// so stack traces survive into zerolog's pkgerrors.MarshalStack.
package encerr

import "github.com/pkg/errors"

// Kind classifies an encoder error for the pipeline driver's recovery
// policy (spec §7 "Propagation policy").
type Kind int

const (
	// KindInvalidConfig: out-of-range sizes, unknown codec, missing input.
	// Surfaced at init; never during steady-state encode.
	KindInvalidConfig Kind = iota
	// KindPoolExhaustion: input images, FrameInfo, bitstream buffers, or
	// DPB pool exhaustion. Handled as backpressure; fatal only when the
	// pipeline detects a wait cycle.
	KindPoolExhaustion
	// KindSubmissionFailure: hardware submission failure. Reset the video
	// session on the next IDR, drop the in-flight sequence.
	KindSubmissionFailure
	// KindQueryNotComplete: query status != COMPLETE. Mark the reference
	// corrupted; force IDR if a key frame is corrupted.
	KindQueryNotComplete
	// KindFenceTimeout: fence wait timed out. Retry with a bounded count;
	// persistent failure escalates to KindSubmissionFailure.
	KindFenceTimeout
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid_config"
	case KindPoolExhaustion:
		return "pool_exhaustion"
	case KindSubmissionFailure:
		return "submission_failure"
	case KindQueryNotComplete:
		return "query_not_complete"
	case KindFenceTimeout:
		return "fence_timeout"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind, so callers can branch on
// recovery policy without string-matching error text.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.cause.Error() }

func (e *Error) Unwrap() error { return e.cause }

// Fatal reports whether this error must propagate to the pipeline driver
// rather than being absorbed as in-band backpressure (spec §7: pool
// exhaustion never propagates; everything else does).
func (e *Error) Fatal() bool { return e.Kind != KindPoolExhaustion }

// New wraps msg with stack-trace context and tags it with kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap tags an existing error with kind, preserving its stack if it was
// itself produced by github.com/pkg/errors.
func Wrap(kind Kind, err error, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// As reports whether err (or any error it wraps) is an *Error, mirroring
// the standard errors.As contract for this package's concrete type.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
