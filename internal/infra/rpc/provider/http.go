package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/wacloud/internal/infra/rpc/classify"
)

const (
	// DefaultBaseURL is the Graph API host.
	DefaultBaseURL = "https://graph.facebook.com"
	// DefaultVersion is the Graph API version prefix.
	DefaultVersion = "v22.0"

	// MaxResponseBytes caps a buffered response body. It sits above the
	// largest media size the platform accepts.
	MaxResponseBytes = 128 << 20
)

var (
	// ErrInvalidRequest marks a request that cannot be sent as built.
	// Retrying it cannot succeed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNoAccessToken is returned when a request is attempted without a token.
	ErrNoAccessToken = fmt.Errorf("%w: access token is required", ErrInvalidRequest)

	// ErrResponseTooLarge is returned when a body exceeds the read limit.
	ErrResponseTooLarge = errors.New("response body too large")
)

// HTTPProvider implements Transport over HTTP with a bearer token.
type HTTPProvider struct {
	baseURL    string
	version    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string

	maxBody int64

	Monitor *Monitor
}

// NewHTTPProvider creates a transport against baseURL/version. Empty values
// select the Graph API defaults.
func NewHTTPProvider(baseURL, version, token string, timeout time.Duration) *HTTPProvider {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version = strings.Trim(strings.TrimSpace(version), "/")
	if version == "" {
		version = DefaultVersion
	}

	return &HTTPProvider{
		baseURL: baseURL,
		version: version,
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBody: MaxResponseBytes,
		Monitor: NewMonitor(),
	}
}

// WithHTTPClient replaces the underlying client. Intended for tests.
func (p *HTTPProvider) WithHTTPClient(c *http.Client) *HTTPProvider {
	if c != nil {
		p.httpClient = c
	}
	return p
}

// WithMaxResponseBytes changes the body read limit.
func (p *HTTPProvider) WithMaxResponseBytes(n int64) *HTTPProvider {
	if n > 0 {
		p.maxBody = n
	}
	return p
}

// BaseURL returns the versioned base URL.
func (p *HTTPProvider) BaseURL() string {
	return p.baseURL + "/" + p.version
}

// UpdateAccessToken swaps the bearer credential. In-flight requests keep the
// token they started with.
func (p *HTTPProvider) UpdateAccessToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = strings.TrimSpace(token)
}

func (p *HTTPProvider) accessToken() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Validate reports whether r can be sent. It runs before admission so a
// request that would fail locally never consumes a rate limit slot.
func (p *HTTPProvider) Validate(r *Request) error {
	if p.accessToken() == "" {
		return ErrNoAccessToken
	}
	_, err := p.newRequest(context.Background(), r, "")
	return err
}

// Do performs one round trip. Only failures below the HTTP layer are
// returned as errors.
func (p *HTTPProvider) Do(ctx context.Context, r *Request) (*RawResponse, error) {
	token := p.accessToken()
	if token == "" {
		return nil, ErrNoAccessToken
	}
	req, err := p.newRequest(ctx, r, token)
	if err != nil {
		return nil, err
	}
	method := req.Method

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.Monitor.RecordFailure()
		return nil, fmt.Errorf("%s %s: %w", method, r.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		p.Monitor.RecordFailure()
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(respBody)) > p.maxBody {
		p.Monitor.RecordFailure()
		return nil, fmt.Errorf("%s %s: %w: limit %d bytes", method, r.Path, ErrResponseTooLarge, p.maxBody)
	}
	latency := time.Since(start)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		p.Monitor.RecordThrottle(classify.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		p.Monitor.RecordRequest(latency)
	default:
		p.Monitor.RecordFailure()
	}

	return &RawResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		Latency:    latency,
	}, nil
}

func (p *HTTPProvider) newRequest(ctx context.Context, r *Request, token string) (*http.Request, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target := p.resolve(r.Path)
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	for k, vals := range r.Header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	return req, nil
}

func (p *HTTPProvider) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.BaseURL() + path
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
