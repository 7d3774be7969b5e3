// Package rpc provides the rate-limited dispatch engine for the WhatsApp
// Cloud API.
//
// This package wires together:
//   - A bearer-authenticated HTTP transport
//   - A sliding-window admission limiter (requests per minute)
//   - Error classification with remediation hints
//   - Retry with server-hinted or exponential backoff
//
// # Quick Start
//
//	import "github.com/vietddude/wacloud/internal/infra/rpc"
//
//	engine := rpc.NewEngine(rpc.Settings{
//	    AccessToken:          token,
//	    MaxRequestsPerMinute: 250,
//	    Retry:                rpc.DefaultRetryConfig,
//	})
//
//	resp, err := engine.Send(ctx, &rpc.Request{
//	    Name:   "messages.send",
//	    Method: http.MethodPost,
//	    Path:   "/" + phoneNumberID + "/messages",
//	    Body:   body,
//	})
//	if errors.Is(err, rpc.ErrRetriesExhausted) {
//	    // never got through
//	}
//
// # Package Structure
//
//   - provider/  - HTTP transport and latency/throttle monitor
//   - ratelimit/ - Sliding-window admission control
//   - classify/  - Response classification and API error enrichment
//   - retry/     - Retry decisions and backoff
//   - dispatch/  - The send loop, terminal errors and observers
//
// Most types are re-exported at the root level for convenience.
package rpc

import (
	"context"
	"time"

	"github.com/vietddude/wacloud/internal/core/config"
	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
	"github.com/vietddude/wacloud/internal/infra/rpc/provider"
	"github.com/vietddude/wacloud/internal/infra/rpc/ratelimit"
	"github.com/vietddude/wacloud/internal/infra/rpc/retry"
)

// =============================================================================
// Re-exported types
// =============================================================================

// Request describes one logical API call.
type Request = provider.Request

// Response is a successful send.
type Response = dispatch.Response

// Error is the terminal error of a send.
type Error = dispatch.Error

// APIError is an enriched Graph API error.
type APIError = classify.APIError

// Observer receives dispatch events.
type Observer = dispatch.Observer

// RetryConfig defines retry behavior.
type RetryConfig = retry.Config

// DefaultRetryConfig mirrors the platform SDK defaults.
var DefaultRetryConfig = retry.DefaultConfig

// Terminal error sentinels.
var (
	ErrAPI              = dispatch.ErrAPI
	ErrTransport        = dispatch.ErrTransport
	ErrRateLimited      = dispatch.ErrRateLimited
	ErrRetriesExhausted = dispatch.ErrRetriesExhausted
	ErrValidation       = dispatch.ErrValidation
	ErrSerialization    = dispatch.ErrSerialization
	ErrTimeout          = dispatch.ErrTimeout
	ErrCanceled         = dispatch.ErrCanceled
)

// =============================================================================
// Engine
// =============================================================================

// Settings is everything needed to build an Engine. It is read once.
type Settings struct {
	BaseURL     string
	Version     string
	AccessToken string

	RequestTimeout       time.Duration
	MaxRequestsPerMinute int
	Retry                retry.Config
	MaxWait              time.Duration
	TransientStatuses    []int
}

// SettingsFromConfig maps the YAML configuration onto Settings.
func SettingsFromConfig(wa config.WhatsAppConfig, d config.DispatchConfig) Settings {
	return Settings{
		BaseURL:              wa.BaseURL,
		Version:              wa.Version,
		AccessToken:          wa.AccessToken,
		RequestTimeout:       d.RequestTimeout,
		MaxRequestsPerMinute: d.MaxRequestsPerMinute,
		Retry: retry.Config{
			MaxRetries:      d.MaxRetries,
			BaseDelay:       d.RetryDelay(),
			MaxDelay:        d.MaxRetryDelay(),
			Backoff:         retry.Backoff(d.Backoff),
			RetryOnThrottle: d.RetryAfterTooManyRequests,
		},
		MaxWait:           d.MaxWait,
		TransientStatuses: d.TransientStatuses,
	}
}

// Engine owns the transport, the shared limiter and the dispatcher of one
// client handle.
type Engine struct {
	Provider   *provider.HTTPProvider
	Limiter    *ratelimit.Limiter
	Dispatcher *dispatch.Dispatcher
}

// NewEngine builds an engine. Extra dispatch options (logger, observers,
// clock) are applied after the settings.
func NewEngine(s Settings, opts ...dispatch.Option) *Engine {
	timeout := s.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	prov := provider.NewHTTPProvider(s.BaseURL, s.Version, s.AccessToken, timeout)
	return NewEngineWithTransport(prov, s, opts...)
}

// NewEngineWithTransport builds an engine over an existing HTTP provider.
func NewEngineWithTransport(prov *provider.HTTPProvider, s Settings, opts ...dispatch.Option) *Engine {
	limiter := ratelimit.New(s.MaxRequestsPerMinute)

	base := []dispatch.Option{
		dispatch.WithClassifier(classify.New(s.TransientStatuses, nil)),
		dispatch.WithMaxWait(s.MaxWait),
	}
	d := dispatch.New(prov, limiter, retry.NewPolicy(s.Retry), append(base, opts...)...)

	return &Engine{Provider: prov, Limiter: limiter, Dispatcher: d}
}

// Send dispatches one request.
func (e *Engine) Send(ctx context.Context, req *Request) (*Response, error) {
	return e.Dispatcher.Send(ctx, req)
}

// UpdateAccessToken rotates the credential. The rate window is kept.
func (e *Engine) UpdateAccessToken(token string) {
	e.Provider.UpdateAccessToken(token)
}

// Close releases transport resources.
func (e *Engine) Close() error {
	return e.Provider.Close()
}
