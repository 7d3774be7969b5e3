// Package client exposes typed WhatsApp Cloud API operations on top of the
// rate-limited dispatch engine.
//
// Every call, including media uploads and profile reads, goes through the
// same limiter, so one Client never exceeds its configured request rate.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vietddude/wacloud/internal/core/config"
	"github.com/vietddude/wacloud/internal/infra/rpc"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
)

// Client is safe for concurrent use.
type Client struct {
	engine            *rpc.Engine
	phoneNumberID     string
	businessAccountID string
	mediaHosts        []string
	log               *slog.Logger
}

// New validates cfg and builds a client with its own engine. Options such as
// dispatch.WithObserver are passed to the dispatcher.
func New(cfg *config.AppConfig, opts ...dispatch.Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine := rpc.NewEngine(rpc.SettingsFromConfig(cfg.WhatsApp, cfg.Dispatch), opts...)
	return NewWithEngine(engine, cfg.WhatsApp), nil
}

// NewWithEngine wraps an existing engine. Only the account identifiers of wa
// are used.
func NewWithEngine(engine *rpc.Engine, wa config.WhatsAppConfig) *Client {
	hosts := append([]string(nil), DefaultMediaHosts...)
	for _, h := range wa.MediaHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}

	return &Client{
		engine:            engine,
		phoneNumberID:     wa.PhoneNumberID,
		businessAccountID: wa.BusinessAccountID,
		mediaHosts:        hosts,
		log:               slog.Default().With("component", "client"),
	}
}

// Engine returns the underlying dispatch engine.
func (c *Client) Engine() *rpc.Engine { return c.engine }

// PhoneNumberID returns the sender phone number ID.
func (c *Client) PhoneNumberID() string { return c.phoneNumberID }

// UpdateAccessToken rotates the bearer token. Rate window state is kept.
func (c *Client) UpdateAccessToken(token string) {
	c.engine.UpdateAccessToken(token)
	c.log.Info("Access token updated")
}

// Close releases transport resources.
func (c *Client) Close() error {
	return c.engine.Close()
}

func (c *Client) do(ctx context.Context, req *rpc.Request, out any) (*rpc.Response, error) {
	resp, err := c.engine.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := resp.Decode(out); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &dispatch.Error{Kind: dispatch.KindSerialization, Op: op, Err: err}
	}
	_, err = c.do(ctx, &rpc.Request{
		Name:        op,
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		ContentType: "application/json",
	}, out)
	return err
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	_, err := c.do(ctx, &rpc.Request{Name: op, Method: http.MethodGet, Path: path, Query: query}, out)
	return err
}

func (c *Client) delete(ctx context.Context, op, path string, query url.Values, out any) error {
	_, err := c.do(ctx, &rpc.Request{Name: op, Method: http.MethodDelete, Path: path, Query: query}, out)
	return err
}

func (c *Client) requireBusinessAccount(op string) error {
	if c.businessAccountID == "" {
		return dispatch.Validation(op, "business account id is not configured")
	}
	return nil
}
