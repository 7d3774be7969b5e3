package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
)

// Kind groups terminal errors by what the caller can do about them.
type Kind int

const (
	KindUnknown Kind = iota
	// KindAPI means the server rejected the request.
	KindAPI
	// KindTransport is a failure below the HTTP layer.
	KindTransport
	// KindRateLimited means the server kept throttling the request.
	KindRateLimited
	// KindRetriesExhausted means every attempt failed transiently.
	KindRetriesExhausted
	// KindValidation is bad caller input detected before dispatch.
	KindValidation
	// KindSerialization means a body did not match the expected shape.
	KindSerialization
	// KindTimeout means the configured wait ceiling or the caller's
	// deadline was reached.
	KindTimeout
	// KindCanceled means the caller abandoned the send.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindAPI:
		return "api"
	case KindTransport:
		return "transport"
	case KindRateLimited:
		return "rate_limited"
	case KindRetriesExhausted:
		return "retries_exhausted"
	case KindValidation:
		return "validation"
	case KindSerialization:
		return "serialization"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrAPI              = errors.New("api error")
	ErrTransport        = errors.New("transport error")
	ErrRateLimited      = errors.New("rate limited")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrValidation       = errors.New("validation error")
	ErrSerialization    = errors.New("serialization error")
	ErrTimeout          = errors.New("dispatch timeout")
	ErrCanceled         = errors.New("dispatch canceled")
)

func (k Kind) sentinel() error {
	switch k {
	case KindAPI:
		return ErrAPI
	case KindTransport:
		return ErrTransport
	case KindRateLimited:
		return ErrRateLimited
	case KindRetriesExhausted:
		return ErrRetriesExhausted
	case KindValidation:
		return ErrValidation
	case KindSerialization:
		return ErrSerialization
	case KindTimeout:
		return ErrTimeout
	case KindCanceled:
		return ErrCanceled
	default:
		return nil
	}
}

// Error is the terminal error of a logical send.
type Error struct {
	Kind      Kind
	Op        string
	RequestID string

	Attempts   int
	StatusCode int
	RetryAfter time.Duration
	Elapsed    time.Duration

	// Exhausted is set when the retry budget ran out, including for
	// KindRateLimited.
	Exhausted bool

	// API is the enriched server error when one was parsed.
	API *classify.APIError

	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Attempts > 0 {
		fmt.Fprintf(&sb, " after %d attempt(s)", e.Attempts)
	}
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.API != nil && e.API.Solution != "" {
		sb.WriteString(" [solution: ")
		sb.WriteString(e.API.Solution)
		sb.WriteString("]")
	}
	return sb.String()
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 3)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Exhausted && e.Kind != KindRetriesExhausted {
		errs = append(errs, ErrRetriesExhausted)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Solution returns the remediation hint, if known.
func (e *Error) Solution() string {
	if e.API == nil {
		return ""
	}
	return e.API.Solution
}

// Validation builds a KindValidation error for op.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
