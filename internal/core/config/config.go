package config

import (
	"time"

	redisclient "github.com/vietddude/wacloud/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	WhatsApp WhatsAppConfig     `yaml:"whatsapp"`
	Dispatch DispatchConfig     `yaml:"dispatch"`
	Redis    redisclient.Config `yaml:"redis"`
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// WhatsAppConfig holds Cloud API credentials and endpoints.
type WhatsAppConfig struct {
	AccessToken       string `yaml:"access_token"`
	PhoneNumberID     string `yaml:"phone_number_id"`
	BusinessAccountID string `yaml:"business_account_id"`
	Version           string `yaml:"version"`  // e.g. v22.0
	BaseURL           string `yaml:"base_url"` // defaults to graph.facebook.com
	AppSecret         string `yaml:"app_secret"`
	VerifyToken       string `yaml:"verify_token"`

	// MediaHosts extends the hosts media downloads may be fetched from.
	// A leading dot matches any subdomain.
	MediaHosts []string `yaml:"media_hosts"`
}

// DispatchConfig controls admission and retries. Values are read once when
// the client is built.
type DispatchConfig struct {
	MaxRequestsPerMinute      int           `yaml:"max_requests_per_minute"`
	RetryAfterTooManyRequests bool          `yaml:"retry_after_too_many_requests"`
	MaxRetries                int           `yaml:"max_retries"`
	RetryDelayMS              int           `yaml:"retry_delay_ms"`
	MaxRetryDelayMS           int           `yaml:"max_retry_delay_ms"`
	Backoff                   string        `yaml:"backoff"`  // exponential, fixed
	MaxWait                   time.Duration `yaml:"max_wait"` // 0 = unbounded
	RequestTimeout            time.Duration `yaml:"request_timeout"`
	TransientStatuses         []int         `yaml:"transient_statuses"`
}

// RetryDelay returns the base retry delay.
func (c DispatchConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// MaxRetryDelay returns the backoff cap; zero means uncapped.
func (c DispatchConfig) MaxRetryDelay() time.Duration {
	return time.Duration(c.MaxRetryDelayMS) * time.Millisecond
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
