// Package dispatch sends requests to the Graph API under a shared
// requests-per-minute budget.
//
// Every attempt, retries included, passes through the rate limiter before it
// reaches the transport. Responses are classified, and the retry policy
// decides whether to loop. Timing lives in the limiter and the policy; the
// dispatcher only counts attempts and keeps the wait budget.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
	"github.com/vietddude/wacloud/internal/infra/rpc/provider"
	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
	"github.com/vietddude/wacloud/internal/infra/rpc/retry"
)

// Response is a successful send.
type Response struct {
	RequestID  string
	Op         string
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
	Elapsed    time.Duration
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{
			Kind:       KindSerialization,
			Op:         r.Op,
			RequestID:  r.RequestID,
			Attempts:   r.Attempts,
			StatusCode: r.StatusCode,
			Elapsed:    r.Elapsed,
			Err:        err,
		}
	}
	return nil
}

// Dispatcher is safe for concurrent use. All callers of one Dispatcher
// share its limiter.
type Dispatcher struct {
	transport  provider.Transport
	limiter    *ratelimit.Limiter
	classifier *classify.Classifier
	policy     retry.Policy

	maxWait  time.Duration
	clock    ratelimit.Clock
	observer Observer
	log      *slog.Logger
	waitLog  *rate.Sometimes
	newID    func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock sets the clock used for backoff waits, bookkeeping and dated
// Retry-After hints. Pass the limiter's clock so both agree.
func WithClock(c ratelimit.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithObserver registers an observer. Repeated calls accumulate.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o == nil {
			return
		}
		if existing, ok := d.observer.(Observers); ok {
			d.observer = append(existing, o)
			return
		}
		if _, ok := d.observer.(nopObserver); ok {
			d.observer = o
			return
		}
		d.observer = Observers{d.observer, o}
	}
}

// WithMaxWait bounds the total time a send may spend waiting for
// admission and backoff. Zero means unbounded.
func WithMaxWait(limit time.Duration) Option {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.maxWait = limit
		}
	}
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.classifier = c
		}
	}
}

// New creates a dispatcher.
func New(t provider.Transport, l *ratelimit.Limiter, p retry.Policy, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:  t,
		limiter:    l,
		classifier: classify.New(nil, nil),
		policy:     p,
		clock:      ratelimit.RealClock(),
		observer:   nopObserver{},
		log:        slog.Default(),
		waitLog:    &rate.Sometimes{First: 1, Interval: 10 * time.Second},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.classifier = d.classifier.WithClock(d.clock.Now)
	d.log = d.log.With("component", "dispatch")
	return d
}

// Limiter returns the shared limiter.
func (d *Dispatcher) Limiter() *ratelimit.Limiter { return d.limiter }

// Policy returns the retry policy.
func (d *Dispatcher) Policy() retry.Policy { return d.policy }

// Send performs one logical request: admission, round trip, classification
// and retry until a terminal decision.
//
// Retries are not idempotent. A retried message send can be delivered twice
// when the server accepted an attempt whose response was lost.
func (d *Dispatcher) Send(ctx context.Context, req *provider.Request) (*Response, error) {
	if req == nil || req.Path == "" {
		op := ""
		if req != nil {
			op = req.Name
		}
		return nil, Validation(op, "request path is required")
	}
	if v, ok := d.transport.(provider.Validator); ok {
		if err := v.Validate(req); err != nil {
			return nil, &Error{Kind: KindValidation, Op: req.Name, Err: err}
		}
	}

	s := &send{
		d:     d,
		req:   req,
		id:    d.newID(),
		start: d.clock.Now(),
	}
	s.log = d.log.With("request_id", s.id, "op", req.Name)

	resp, err := s.run(ctx)

	result := Result{
		RequestID: s.id,
		Op:        req.Name,
		Attempts:  s.attempts,
		Elapsed:   s.elapsed(),
	}
	if err != nil {
		var de *Error
		if errors.As(err, &de) {
			result.Kind = de.Kind
			result.StatusCode = de.StatusCode
		}
		result.Err = err
		s.log.Error("request failed", "attempts", s.attempts, "elapsed", result.Elapsed, "error", err)
	} else {
		result.StatusCode = resp.StatusCode
		s.log.Debug("request completed", "attempts", s.attempts, "status", resp.StatusCode, "elapsed", result.Elapsed)
	}
	d.observer.OnResult(result)

	return resp, err
}

// send is the bookkeeping of one logical request.
type send struct {
	d        *Dispatcher
	req      *provider.Request
	id       string
	log      *slog.Logger
	start    time.Time
	attempts int
	waited   time.Duration
}

func (s *send) elapsed() time.Duration { return s.d.clock.Now().Sub(s.start) }

func (s *send) run(ctx context.Context) (*Response, error) {
	d := s.d
	for attempt := 0; ; attempt++ {
		admission, err := s.admit(ctx)
		if err != nil {
			return nil, err
		}

		s.attempts++
		raw, err := d.transport.Do(ctx, s.req)

		var out classify.Outcome
		var latency time.Duration
		local := KindUnknown
		if err != nil {
			if ctx.Err() != nil {
				return nil, s.abort(ctx.Err())
			}
			if kind, ok := localFailure(err); ok {
				local = kind
				out = classify.Outcome{Kind: classify.KindFatal, Reason: classify.ReasonTransport, Err: err}
			} else {
				out = d.classifier.ClassifyTransport(err)
			}
		} else {
			latency = raw.Latency
			out = d.classifier.Classify(raw.StatusCode, raw.Header, raw.Body)
		}

		d.observer.OnAttempt(Attempt{
			RequestID:     s.id,
			Op:            s.req.Name,
			Index:         attempt,
			AdmissionWait: admission,
			Latency:       latency,
			StatusCode:    out.StatusCode,
			Outcome:       out.Kind,
			Reason:        out.Reason,
			Throttled:     out.Throttled,
			RetryAfter:    out.RetryAfter,
		})

		if local != KindUnknown {
			return nil, s.terminal(local, out, false)
		}

		if out.Throttled && out.RetryAfter > 0 {
			d.limiter.NoteServerThrottle(out.RetryAfter)
		}

		dec := d.policy.Decide(out, attempt)
		switch dec.Action {
		case retry.ActionReturn:
			return &Response{
				RequestID:  s.id,
				Op:         s.req.Name,
				StatusCode: raw.StatusCode,
				Header:     raw.Header,
				Body:       raw.Body,
				Attempts:   s.attempts,
				Elapsed:    s.elapsed(),
			}, nil

		case retry.ActionFail:
			return nil, s.terminal(failKind(out), out, false)

		case retry.ActionThrottled:
			return nil, s.terminal(KindRateLimited, out, false)

		case retry.ActionExhausted:
			kind := KindRetriesExhausted
			if out.Throttled {
				kind = KindRateLimited
			}
			return nil, s.terminal(kind, out, true)
		}

		if d.maxWait > 0 && s.waited+dec.Delay > d.maxWait {
			e := s.terminal(KindTimeout, out, false)
			e.Err = errors.Join(errors.New("retry delay exceeds wait budget"), out.Err)
			return nil, e
		}

		s.log.Warn("retrying request",
			"attempt", attempt+1,
			"status", out.StatusCode,
			"reason", out.Reason,
			"delay", dec.Delay,
			"server_hinted", dec.ServerHinted,
		)
		if err := d.clock.Sleep(ctx, dec.Delay); err != nil {
			return nil, s.abort(err)
		}
		s.waited += dec.Delay
	}
}

// admit acquires a limiter slot within the remaining wait budget and
// returns how long it took.
func (s *send) admit(ctx context.Context) (time.Duration, error) {
	d := s.d
	acqCtx := ctx
	if d.maxWait > 0 {
		remaining := d.maxWait - s.waited
		if remaining <= 0 {
			return 0, s.timeout(nil)
		}
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, remaining)
		defer cancel()
	}

	began := d.clock.Now()
	err := d.limiter.Acquire(acqCtx)
	wait := d.clock.Now().Sub(began)
	s.waited += wait

	if err != nil {
		if ctx.Err() != nil {
			return wait, s.abort(ctx.Err())
		}
		return wait, s.timeout(err)
	}
	if wait > 0 {
		d.waitLog.Do(func() {
			s.log.Debug("admission delayed by rate limiter", "wait", wait)
		})
	}
	if d.maxWait > 0 && s.waited > d.maxWait {
		return wait, s.timeout(nil)
	}
	return wait, nil
}

func (s *send) terminal(kind Kind, out classify.Outcome, exhausted bool) *Error {
	return &Error{
		Kind:       kind,
		Op:         s.req.Name,
		RequestID:  s.id,
		Attempts:   s.attempts,
		StatusCode: out.StatusCode,
		RetryAfter: out.RetryAfter,
		Elapsed:    s.elapsed(),
		Exhausted:  exhausted,
		API:        out.APIError(),
		Err:        out.Err,
	}
}

func (s *send) timeout(cause error) *Error {
	if cause == nil {
		cause = errors.New("wait budget exceeded")
	}
	return &Error{
		Kind:      KindTimeout,
		Op:        s.req.Name,
		RequestID: s.id,
		Attempts:  s.attempts,
		Elapsed:   s.elapsed(),
		Err:       cause,
	}
}

// abort maps a caller-side context error.
func (s *send) abort(err error) *Error {
	kind := KindCanceled
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{
		Kind:      kind,
		Op:        s.req.Name,
		RequestID: s.id,
		Attempts:  s.attempts,
		Elapsed:   s.elapsed(),
		Err:       err,
	}
}

// localFailure maps transport errors that a retry cannot fix.
func localFailure(err error) (Kind, bool) {
	switch {
	case errors.Is(err, provider.ErrInvalidRequest):
		return KindValidation, true
	case errors.Is(err, provider.ErrResponseTooLarge):
		return KindSerialization, true
	}
	return KindUnknown, false
}

func failKind(out classify.Outcome) Kind {
	switch out.Reason {
	case classify.ReasonMalformedBody:
		return KindSerialization
	case classify.ReasonCanceled:
		return KindCanceled
	case classify.ReasonTransport:
		return KindTransport
	default:
		return KindAPI
	}
}
