package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_WHATSAPP_TOKEN", "EAAG-secret")
	defer os.Unsetenv("TEST_WHATSAPP_TOKEN")

	// Create temp config file
	configContent := `
whatsapp:
  access_token: ${TEST_WHATSAPP_TOKEN}
  phone_number_id: "1234567890"
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.WhatsApp.AccessToken != "EAAG-secret" {
		t.Errorf("Expected token EAAG-secret, got %s", cfg.WhatsApp.AccessToken)
	}
	if cfg.WhatsApp.PhoneNumberID != "1234567890" {
		t.Errorf("Expected phone number id 1234567890, got %s", cfg.WhatsApp.PhoneNumberID)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("whatsapp:\n  access_token: x\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	d := cfg.Dispatch
	if d.MaxRequestsPerMinute != 250 {
		t.Errorf("Expected 250 requests per minute, got %d", d.MaxRequestsPerMinute)
	}
	if !d.RetryAfterTooManyRequests {
		t.Errorf("Expected retry on throttle to default to true")
	}
	if d.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", d.MaxRetries)
	}
	if d.RetryDelay() != time.Second {
		t.Errorf("Expected 1s retry delay, got %s", d.RetryDelay())
	}
	if d.MaxRetryDelay() != 30*time.Second {
		t.Errorf("Expected 30s max retry delay, got %s", d.MaxRetryDelay())
	}
	if d.RequestTimeout != 30*time.Second {
		t.Errorf("Expected 30s request timeout, got %s", d.RequestTimeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Redis.Prefix != "wacloud" {
		t.Errorf("Expected redis prefix wacloud, got %s", cfg.Redis.Prefix)
	}
}

func TestLoad_Overrides(t *testing.T) {
	content := `
dispatch:
  max_requests_per_minute: 80
  retry_after_too_many_requests: false
  max_retries: 0
  retry_delay_ms: 250
  backoff: fixed
  max_wait: 2m
  request_timeout: 5s
  transient_statuses: [500, 503]
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	d := cfg.Dispatch
	if d.MaxRequestsPerMinute != 80 || d.RetryAfterTooManyRequests || d.MaxRetries != 0 {
		t.Errorf("Unexpected dispatch config: %+v", d)
	}
	if d.RetryDelay() != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", d.RetryDelay())
	}
	if d.Backoff != "fixed" {
		t.Errorf("Expected fixed backoff, got %s", d.Backoff)
	}
	if d.MaxWait != 2*time.Minute {
		t.Errorf("Expected 2m max wait, got %s", d.MaxWait)
	}
	if d.RequestTimeout != 5*time.Second {
		t.Errorf("Expected 5s timeout, got %s", d.RequestTimeout)
	}
	if len(d.TransientStatuses) != 2 || d.TransientStatuses[1] != 503 {
		t.Errorf("Unexpected transient statuses %v", d.TransientStatuses)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Dispatch.MaxRequestsPerMinute = 0
	cfg.Dispatch.MaxRetries = -1
	cfg.Dispatch.RetryDelayMS = -5
	cfg.Dispatch.Backoff = "linear"
	cfg.Dispatch.TransientStatuses = []int{42}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	for _, want := range []string{
		"access_token",
		"phone_number_id",
		"max_requests_per_minute",
		"max_retries",
		"retry_delay_ms",
		"backoff",
		"invalid status 42",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WHATSAPP_TOKEN", "tok")
	t.Setenv("WHATSAPP_PHONE_NUMBER_ID", "42")

	cfg := FromEnv()
	if cfg.WhatsApp.AccessToken != "tok" || cfg.WhatsApp.PhoneNumberID != "42" {
		t.Errorf("Unexpected whatsapp config: %+v", cfg.WhatsApp)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Expected error for missing file")
	}
}
