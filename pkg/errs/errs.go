// Package errs implements the single tagged error model shared by every layer of the
// agent core: Tool Invocation, Provider Abstraction, Agent Engine, and Retrieval &
// Memory all surface failures as *errs.Error rather than ad hoc error types.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind categorizes an Error for callers that need to branch on failure category
// (retry, surface to user, abort run) without string-matching messages.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindRateLimited    Kind = "rate_limited"
	KindTimeout        Kind = "timeout"
	KindNetwork        Kind = "network"
	KindService        Kind = "service"
	KindStreamProtocol Kind = "stream_protocol"
	KindToolCall       Kind = "tool_call"
	KindGuardrail      Kind = "guardrail"
	KindProcessing     Kind = "processing"
	KindCancelled      Kind = "cancelled"
	KindCorrupt        Kind = "corrupt"
)

// Retryable reports whether errors of this kind are, in general, worth retrying.
// Only RateLimited, Timeout, and transient Network/Service failures qualify; the
// Provider Client additionally requires the latter two be flagged transient by the
// adapter before it will retry (see Error.Transient).
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is the tagged variant every package in this module returns instead of a bare
// error: a Kind for programmatic branching, an Op identifying the failing operation,
// a human Message, an optional wrapped Cause, and kind-specific metadata.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error

	// RetryAfter is populated by KindRateLimited errors when the provider supplied a
	// hint (e.g. an HTTP Retry-After header).
	RetryAfter time.Duration

	// Transient marks a Network/Service error the adapter believes is retryable
	// (e.g. a 5xx status or connection reset) as opposed to a permanent one (4xx).
	Transient bool

	// Attempts records how many attempts were made before this error was returned,
	// for errors surfaced after retry exhaustion.
	Attempts int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s]", e.Kind))
	if e.Op != "" {
		b.WriteString(" " + e.Op + ":")
	}
	if e.Message != "" {
		b.WriteString(" " + e.Message)
	} else if e.Cause != nil {
		b.WriteString(" " + e.Cause.Error())
	}
	if e.Attempts > 1 {
		b.WriteString(fmt.Sprintf(" (attempts=%d)", e.Attempts))
	}
	return b.String()
}

// Unwrap exposes the cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, errs.KindKey(k)) style sentinel comparisons work by kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New constructs an Error of the given kind for operation op.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, op string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Cause: cause}
}

// KindKey builds a sentinel *Error whose only populated field is Kind, for use with
// errors.Is(err, errs.KindKey(errs.KindTimeout)).
func KindKey(k Kind) *Error { return &Error{Kind: k} }

// Retryable reports whether err should be retried: either the Kind is inherently
// retryable (RateLimited, Timeout), or it is a Network/Service error the adapter
// marked Transient.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if e.Kind.Retryable() {
		return true
	}
	if (e.Kind == KindNetwork || e.Kind == KindService) && e.Transient {
		return true
	}
	return false
}

// Of extracts the *Error from err, returning (nil, false) if err does not wrap an
// *Error.
func Of(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err wraps an *Error of the given kind.
func IsKind(err error, k Kind) bool {
	e, ok := Of(err)
	return ok && e.Kind == k
}
