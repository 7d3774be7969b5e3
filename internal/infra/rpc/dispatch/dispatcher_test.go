package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
	"github.com/vietddude/wacloud/internal/infra/rpc/provider"
	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
	"github.com/vietddude/wacloud/internal/infra/rpc/retry"
)

type reply struct {
	status int
	header http.Header
	body   string
	err    error
}

// scripted replays replies in order and repeats the last one.
type scripted struct {
	mu      sync.Mutex
	replies []reply
	calls   int
}

func (s *scripted) Do(ctx context.Context, _ *provider.Request) (*provider.RawResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &provider.RawResponse{StatusCode: r.status, Header: r.header, Body: []byte(r.body)}, nil
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu       sync.Mutex
	attempts []Attempt
	results  []Result
}

func (r *recorder) OnAttempt(a Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

func (r *recorder) OnResult(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
}

type fixture struct {
	clock     *ratelimit.FakeClock
	limiter   *ratelimit.Limiter
	transport *scripted
	rec       *recorder
	d         *Dispatcher
}

func newFixture(t *testing.T, capacity int, cfg retry.Config, replies []reply, opts ...Option) *fixture {
	t.Helper()
	clock := ratelimit.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := ratelimit.New(capacity, ratelimit.WithClock(clock))
	tr := &scripted{replies: replies}
	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts = append([]Option{WithClock(clock), WithObserver(rec), WithLogger(logger)}, opts...)
	return &fixture{
		clock:     clock,
		limiter:   limiter,
		transport: tr,
		rec:       rec,
		d:         New(tr, limiter, retry.NewPolicy(cfg), opts...),
	}
}

func messagesRequest() *provider.Request {
	return &provider.Request{
		Name:        "messages.send",
		Method:      http.MethodPost,
		Path:        "/123/messages",
		Body:        []byte(`{"to":"1"}`),
		ContentType: "application/json",
	}
}

func TestSend_Success(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{
		{status: 200, body: `{"messages":[{"id":"wamid.1"}]}`},
	})

	resp, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, 1, resp.Attempts)
	require.NotEmpty(t, resp.RequestID)

	var out struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	require.NoError(t, resp.Decode(&out))
	require.Equal(t, "wamid.1", out.Messages[0].ID)

	require.Len(t, f.rec.results, 1)
	require.Equal(t, KindUnknown, f.rec.results[0].Kind)
}

func TestSend_RetriesExhaustedOnPersistent500(t *testing.T) {
	cfg := retry.Config{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 30 * time.Second, RetryOnThrottle: true}
	f := newFixture(t, 10, cfg, []reply{{status: 500, body: "upstream exploded"}})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.Error(t, err)
	require.Equal(t, 3, f.transport.Calls())

	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.NotErrorIs(t, err, ErrAPI)
	require.Equal(t, KindRetriesExhausted, KindOf(err))

	var de *Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, 3, de.Attempts)
	require.Equal(t, 500, de.StatusCode)

	var se *classify.StatusError
	require.ErrorAs(t, err, &se)

	// Exponential backoff between the three attempts.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.clock.Sleeps())

	// Every attempt went through the limiter.
	require.Equal(t, uint64(3), f.limiter.Stats().Admitted)
	require.Len(t, f.rec.attempts, 3)
}

func TestSend_RetryAfterOverridesBackoff(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{
		{status: 429, header: http.Header{"Retry-After": {"5"}}},
		{status: 200, body: `{}`},
	})

	resp, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)
	require.Equal(t, 2, resp.Attempts)
	require.Equal(t, []time.Duration{5 * time.Second}, f.clock.Sleeps())
	require.Equal(t, 5*time.Second, resp.Elapsed)
}

func TestSend_ThrottleRetryDisabled(t *testing.T) {
	cfg := retry.DefaultConfig
	cfg.RetryOnThrottle = false
	f := newFixture(t, 10, cfg, []reply{{status: 429}, {status: 200}})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrRateLimited)
	require.NotErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 1, f.transport.Calls())
	require.Empty(t, f.clock.Sleeps())
}

func TestSend_PersistentThrottleIsRateLimited(t *testing.T) {
	cfg := retry.Config{MaxRetries: 1, BaseDelay: time.Second, RetryOnThrottle: true}
	f := newFixture(t, 10, cfg, []reply{
		{status: 400, body: `{"error":{"message":"rate","type":"OAuthException","code":80007,"fbtrace_id":"x"}}`},
	})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.Equal(t, KindRateLimited, KindOf(err))
	require.ErrorIs(t, err, ErrRateLimited)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 2, f.transport.Calls())
}

func TestSend_FatalAPIErrorNotRetried(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{
		{status: 401, body: `{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190,"fbtrace_id":"AbC"}}`},
	})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrAPI)
	require.Equal(t, 1, f.transport.Calls())

	var apiErr *classify.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 190, apiErr.Code)
	require.Equal(t, "AbC", apiErr.TraceID)

	var de *Error
	require.ErrorAs(t, err, &de)
	require.NotEmpty(t, de.Solution())
	require.Contains(t, err.Error(), "solution")
}

func TestSend_TransportErrorRetried(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{
		{err: errors.New("connection reset by peer")},
		{status: 200, body: `{"success":true}`},
	})

	resp, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)
	require.Equal(t, 2, resp.Attempts)
}

func TestSend_PersistentTransportError(t *testing.T) {
	cfg := retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond}
	f := newFixture(t, 10, cfg, []reply{{err: errors.New("dial tcp: no route to host")}})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "no route to host")
}

func TestSend_MalformedSuccessBody(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{{status: 200, body: "<html>"}})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrSerialization)
	require.Equal(t, 1, f.transport.Calls())
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{{status: 200}})

	_, err := f.d.Send(context.Background(), &provider.Request{Name: "media.get"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.d.Send(context.Background(), nil)
	require.ErrorIs(t, err, ErrValidation)

	require.Zero(t, f.transport.Calls())
	require.Zero(t, f.limiter.Stats().Admitted)
}

// validating rejects every request before it reaches the wire.
type validating struct {
	*scripted
	err error
}

func (v validating) Validate(*provider.Request) error { return v.err }

func TestSend_TransportValidationBeforeAdmission(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{{status: 200, body: `{}`}})
	d := New(validating{f.transport, provider.ErrNoAccessToken}, f.limiter, retry.NewPolicy(retry.DefaultConfig),
		WithClock(f.clock), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, provider.ErrNoAccessToken)
	require.Zero(t, f.transport.Calls())
	require.Zero(t, f.limiter.Stats().Admitted)
	require.Empty(t, f.clock.Sleeps())
}

func TestSend_MissingTokenUsesNoSlot(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	limiter := ratelimit.New(10, ratelimit.WithClock(clock))
	p := provider.NewHTTPProvider("http://127.0.0.1:1", "", "", time.Second)
	d := New(p, limiter, retry.NewPolicy(retry.DefaultConfig), WithClock(clock))

	_, err := d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, provider.ErrNoAccessToken)
	require.Zero(t, limiter.Stats().Admitted)
	require.Empty(t, clock.Sleeps())
	require.Zero(t, p.Monitor.GetStats().Failures)
}

func TestSend_LocalTransportFailureNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"invalid request", fmt.Errorf("%w: bad url", provider.ErrInvalidRequest), ErrValidation},
		{"oversized body", fmt.Errorf("GET /x: %w", provider.ErrResponseTooLarge), ErrSerialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 10, retry.DefaultConfig, []reply{{err: tt.err}, {status: 200, body: `{}`}})

			_, err := f.d.Send(context.Background(), messagesRequest())
			require.ErrorIs(t, err, tt.want)
			require.NotErrorIs(t, err, ErrRetriesExhausted)
			require.Equal(t, 1, f.transport.Calls())
			require.Empty(t, f.clock.Sleeps())
			require.Len(t, f.rec.attempts, 1)
			require.Equal(t, classify.KindFatal, f.rec.attempts[0].Outcome)
		})
	}
}

func TestSend_RetryAfterDateUsesInjectedClock(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 7, 0, time.UTC).Format(http.TimeFormat)
	f := newFixture(t, 10, retry.DefaultConfig, []reply{
		{status: 429, header: http.Header{"Retry-After": {at}}},
		{status: 200, body: `{}`},
	})

	resp, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)
	require.Equal(t, 2, resp.Attempts)
	require.Equal(t, []time.Duration{7 * time.Second}, f.clock.Sleeps())
}

func TestSend_FourthRequestWaitsForWindow(t *testing.T) {
	f := newFixture(t, 3, retry.DefaultConfig, []reply{{status: 200, body: `{}`}})

	for i := 0; i < 3; i++ {
		resp, err := f.d.Send(context.Background(), messagesRequest())
		require.NoError(t, err)
		require.Zero(t, resp.Elapsed)
	}

	resp, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, resp.Elapsed)
	require.Equal(t, []time.Duration{60 * time.Second}, f.clock.Sleeps())
	require.Equal(t, 60*time.Second, f.rec.attempts[3].AdmissionWait)
}

func TestSend_MaxWaitOnAdmission(t *testing.T) {
	f := newFixture(t, 1, retry.DefaultConfig, []reply{{status: 200, body: `{}`}}, WithMaxWait(10*time.Second))

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)

	_, err = f.d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 1, f.transport.Calls())
}

func TestSend_MaxWaitOnBackoff(t *testing.T) {
	cfg := retry.Config{MaxRetries: 3, BaseDelay: 20 * time.Second}
	f := newFixture(t, 10, cfg, []reply{{status: 503}}, WithMaxWait(10*time.Second))

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 1, f.transport.Calls())
	require.Empty(t, f.clock.Sleeps())
}

func TestSend_Canceled(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{{status: 200}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.d.Send(ctx, messagesRequest())
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSend_ObserverSeesEveryAttempt(t *testing.T) {
	f := newFixture(t, 10, retry.DefaultConfig, []reply{
		{status: 503},
		{status: 200, body: `{}`},
	})

	_, err := f.d.Send(context.Background(), messagesRequest())
	require.NoError(t, err)

	require.Len(t, f.rec.attempts, 2)
	require.Equal(t, classify.KindRetryable, f.rec.attempts[0].Outcome)
	require.Equal(t, classify.ReasonTransient, f.rec.attempts[0].Reason)
	require.Equal(t, classify.KindSuccess, f.rec.attempts[1].Outcome)
	require.Equal(t, f.rec.attempts[0].RequestID, f.rec.attempts[1].RequestID)

	require.Len(t, f.rec.results, 1)
	require.Equal(t, 2, f.rec.results[0].Attempts)
	require.Equal(t, "messages.send", f.rec.results[0].Op)
}

func TestResponse_DecodeMismatch(t *testing.T) {
	resp := &Response{Op: "templates.list", StatusCode: 200, Body: []byte(`{"data":"not-a-list"}`)}

	var out struct {
		Data []string `json:"data"`
	}
	err := resp.Decode(&out)
	require.ErrorIs(t, err, ErrSerialization)
}

func TestObservers_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	obs := Observers{a, nil, b}

	obs.OnAttempt(Attempt{Index: 1})
	obs.OnResult(Result{Attempts: 1})

	require.Len(t, a.attempts, 1)
	require.Len(t, b.results, 1)
}
