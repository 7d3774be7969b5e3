package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Default returns the configuration used for keys missing from the file.
func Default() AppConfig {
	return AppConfig{
		Dispatch: DispatchConfig{
			MaxRequestsPerMinute:      250,
			RetryAfterTooManyRequests: true,
			MaxRetries:                3,
			RetryDelayMS:              1000,
			MaxRetryDelayMS:           30000,
			Backoff:                   "exponential",
			RequestTimeout:            30 * time.Second,
			TransientStatuses:         []int{500, 502, 503, 504},
		},
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content over the defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Dispatch.Backoff == "" {
		cfg.Dispatch.Backoff = "exponential"
	}
	if cfg.Dispatch.RequestTimeout == 0 {
		cfg.Dispatch.RequestTimeout = 30 * time.Second
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "wacloud"
	}

	return &cfg, nil
}

// FromEnv builds a configuration from WHATSAPP_* environment variables,
// used when no config file is given.
func FromEnv() *AppConfig {
	cfg := Default()
	cfg.WhatsApp = WhatsAppConfig{
		AccessToken:       os.Getenv("WHATSAPP_TOKEN"),
		PhoneNumberID:     os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		BusinessAccountID: os.Getenv("WHATSAPP_BUSINESS_ACCOUNT_ID"),
		Version:           os.Getenv("WHATSAPP_API_VERSION"),
		AppSecret:         os.Getenv("WHATSAPP_APP_SECRET"),
		VerifyToken:       os.Getenv("WHATSAPP_VERIFY_TOKEN"),
	}
	cfg.Redis.Prefix = "wacloud"
	return &cfg
}

// Validate reports every invalid setting at once.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.WhatsApp.AccessToken == "" {
		errs = append(errs, errors.New("whatsapp.access_token is required"))
	}
	if c.WhatsApp.PhoneNumberID == "" {
		errs = append(errs, errors.New("whatsapp.phone_number_id is required"))
	}

	d := c.Dispatch
	if d.MaxRequestsPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_requests_per_minute must be positive, got %d", d.MaxRequestsPerMinute))
	}
	if d.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_retries must not be negative, got %d", d.MaxRetries))
	}
	if d.RetryDelayMS < 0 {
		errs = append(errs, fmt.Errorf("dispatch.retry_delay_ms must not be negative, got %d", d.RetryDelayMS))
	}
	if d.MaxRetryDelayMS < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_retry_delay_ms must not be negative, got %d", d.MaxRetryDelayMS))
	}
	if d.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_wait must not be negative, got %s", d.MaxWait))
	}
	if d.Backoff != "exponential" && d.Backoff != "fixed" {
		errs = append(errs, fmt.Errorf("dispatch.backoff must be exponential or fixed, got %q", d.Backoff))
	}
	for _, s := range d.TransientStatuses {
		if s < 100 || s > 599 {
			errs = append(errs, fmt.Errorf("dispatch.transient_statuses contains invalid status %d", s))
		}
	}

	return errors.Join(errs...)
}
