// Package classify turns raw HTTP results from the Graph API into
// success / retryable / fatal outcomes.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind is the classification of a single round trip.
type Kind int

const (
	KindUnknown Kind = iota
	KindSuccess
	KindRetryable
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRetryable:
		return "retryable"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome reasons.
const (
	ReasonSuccess       = "success"
	ReasonThrottled     = "throttled"
	ReasonTransient     = "http_transient"
	ReasonTransport     = "transport_error"
	ReasonCanceled      = "context_canceled"
	ReasonAPIError      = "api_error"
	ReasonUnparseable   = "unparseable_error_body"
	ReasonMalformedBody = "malformed_body"
)

// Outcome is the immutable result of classifying one round trip.
type Outcome struct {
	Kind       Kind
	Reason     string
	StatusCode int

	// Throttled is set when the server signalled a rate limit, either by
	// status 429 or by a throttling error code.
	Throttled bool

	// RetryAfter is the server-suggested delay; zero when absent.
	RetryAfter time.Duration

	// Err is the *APIError, *StatusError or transport error behind a
	// non-success outcome.
	Err error
}

// APIError returns the enriched API error carried by the outcome, if any.
func (o Outcome) APIError() *APIError {
	var apiErr *APIError
	if errors.As(o.Err, &apiErr) {
		return apiErr
	}
	return nil
}

// StatusError is a non-2xx response whose body is not a Graph API error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// DefaultTransientStatuses are retried as transient server failures.
var DefaultTransientStatuses = []int{
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// DefaultThrottleCodes are Graph API error codes that mean "slow down"
// even when the HTTP status is not 429.
var DefaultThrottleCodes = []int{4, 80007, 130429}

// Classifier maps responses to outcomes. The zero value uses the defaults.
type Classifier struct {
	transient map[int]struct{}
	throttle  map[int]struct{}
	now       func() time.Time
}

// New creates a classifier. Nil slices select the defaults.
func New(transientStatuses, throttleCodes []int) *Classifier {
	if transientStatuses == nil {
		transientStatuses = DefaultTransientStatuses
	}
	if throttleCodes == nil {
		throttleCodes = DefaultThrottleCodes
	}
	c := &Classifier{
		transient: make(map[int]struct{}, len(transientStatuses)),
		throttle:  make(map[int]struct{}, len(throttleCodes)),
	}
	for _, s := range transientStatuses {
		c.transient[s] = struct{}{}
	}
	for _, code := range throttleCodes {
		c.throttle[code] = struct{}{}
	}
	return c
}

// WithClock returns a copy of c that resolves HTTP-date Retry-After values
// against now instead of the wall clock.
func (c *Classifier) WithClock(now func() time.Time) *Classifier {
	if c == nil || c.transient == nil {
		c = New(nil, nil)
	}
	cp := *c
	cp.now = now
	return &cp
}

func (c *Classifier) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Classify inspects a completed round trip. It has no side effects.
func (c *Classifier) Classify(status int, header http.Header, body []byte) Outcome {
	if c == nil || c.transient == nil {
		c = New(nil, nil)
	}

	out := Outcome{StatusCode: status}

	if status >= 200 && status < 300 {
		if expectsJSON(header) && len(strings.TrimSpace(string(body))) > 0 && !json.Valid(body) {
			out.Kind = KindFatal
			out.Reason = ReasonMalformedBody
			out.Err = fmt.Errorf("response body is not valid json")
			return out
		}
		out.Kind = KindSuccess
		out.Reason = ReasonSuccess
		return out
	}

	apiErr, parsed := ParseAPIError(body)
	if parsed {
		out.Err = apiErr
	} else {
		out.Err = &StatusError{StatusCode: status, Body: truncate(strings.TrimSpace(string(body)), 512)}
	}

	if status == http.StatusTooManyRequests || (parsed && c.isThrottleCode(apiErr.Code)) {
		out.Kind = KindRetryable
		out.Reason = ReasonThrottled
		out.Throttled = true
		out.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), c.clock())
		return out
	}

	if _, ok := c.transient[status]; ok {
		out.Kind = KindRetryable
		out.Reason = ReasonTransient
		out.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), c.clock())
		return out
	}

	out.Kind = KindFatal
	if parsed {
		out.Reason = ReasonAPIError
	} else {
		out.Reason = ReasonUnparseable
	}
	return out
}

// ClassifyTransport classifies a failure below the HTTP layer. Network
// failures and per-attempt timeouts are retryable; cancellation is not.
func (c *Classifier) ClassifyTransport(err error) Outcome {
	if errors.Is(err, context.Canceled) {
		return Outcome{Kind: KindFatal, Reason: ReasonCanceled, Err: err}
	}
	return Outcome{Kind: KindRetryable, Reason: ReasonTransport, Err: err}
}

// expectsJSON reports whether a success body must be JSON. Media downloads
// declare a binary content type and are passed through as-is.
func expectsJSON(header http.Header) bool {
	ct := header.Get("Content-Type")
	if ct == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return true
	}
	return strings.Contains(mt, "json") || mt == "text/javascript"
}

func (c *Classifier) isThrottleCode(code int) bool {
	_, ok := c.throttle[code]
	return ok
}

// ParseRetryAfter reads a Retry-After value given either as delay seconds
// or as an HTTP date. Unparseable or past values yield zero.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
