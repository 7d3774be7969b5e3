// Package provider implements the HTTP transport to the Graph API.
//
// This package contains:
//   - Request / RawResponse: opaque request descriptors built by the payload layer
//   - Transport: the interface the dispatcher drives
//   - HTTPProvider: bearer-authenticated HTTP implementation
//   - Monitor: latency and throttle tracking for health reporting
package provider

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Request describes one logical API call. The body is transported as-is.
type Request struct {
	// Name identifies the operation for logs and metrics (e.g. "messages.send").
	Name string

	// Method is the HTTP method; empty means GET.
	Method string

	// Path is appended to the versioned base URL (e.g. "/123/messages").
	// An absolute URL is used unchanged, which media downloads rely on.
	Path string

	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// RawResponse is a completed round trip. Non-2xx statuses are not errors at
// this layer.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Latency    time.Duration
}

// Transport performs a single HTTP round trip.
type Transport interface {
	Do(ctx context.Context, req *Request) (*RawResponse, error)
}

// Validator is implemented by transports that can reject a request before
// it is sent.
type Validator interface {
	Validate(req *Request) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*RawResponse, error)

func (f TransportFunc) Do(ctx context.Context, req *Request) (*RawResponse, error) {
	return f(ctx, req)
}
