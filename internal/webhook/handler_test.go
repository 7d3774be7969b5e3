package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vietddude/wacloud/internal/core/domain"
)

const samplePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "15550000", "phone_number_id": "123"},
        "contacts": [{"wa_id": "15550001", "profile": {"name": "Jane"}}],
        "messages": [{"from": "15550001", "id": "wamid.IN", "timestamp": "1700000000", "type": "text", "text": {"body": "hi"}}],
        "statuses": [{"id": "wamid.OUT", "status": "delivered", "timestamp": "1700000001", "recipient_id": "15550001"}]
      }
    }]
  }]
}`

func TestVerify(t *testing.T) {
	h := NewHandler(Config{VerifyToken: "secret-token"}, nil)

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"ok", "hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, ""},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?"+tt.query, nil))
			require.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				require.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestVerify_NoTokenConfigured(t *testing.T) {
	h := NewHandler(Config{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReceive_SignedEvent(t *testing.T) {
	var got *domain.WebhookEvent
	h := NewHandler(Config{AppSecret: "app-secret"}, func(ctx context.Context, event *domain.WebhookEvent) error {
		got = event
		return nil
	})

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(samplePayload))
	req.Header.Set(signatureHeader, Sign("app-secret", []byte(samplePayload)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	require.Equal(t, "whatsapp_business_account", got.Object)

	msgs := got.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "hi", msgs[0].Text.Body)

	statuses := got.Statuses()
	require.Len(t, statuses, 1)
	require.Equal(t, "delivered", statuses[0].Status)
}

func TestReceive_RejectsBadSignature(t *testing.T) {
	called := false
	h := NewHandler(Config{AppSecret: "app-secret"}, func(ctx context.Context, event *domain.WebhookEvent) error {
		called = true
		return nil
	})

	for _, sig := range []string{"", "sha256=deadbeef", Sign("other-secret", []byte(samplePayload)), "md5=abc"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(samplePayload))
		if sig != "" {
			req.Header.Set(signatureHeader, sig)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "signature %q", sig)
	}
	require.False(t, called)
}

func TestReceive_UnsignedWhenNoSecret(t *testing.T) {
	h := NewHandler(Config{}, func(ctx context.Context, event *domain.WebhookEvent) error {
		return errors.New("downstream failed")
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(samplePayload)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := httptest.NewServer(NewHandler(Config{}, nil))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"a":1}`)
	require.NoError(t, VerifySignature("s", body, Sign("s", body)))
	require.ErrorIs(t, VerifySignature("s", body, ""), ErrMissingSignature)
	require.ErrorIs(t, VerifySignature("s", body, "sha256=zz"), ErrInvalidSignature)
	require.ErrorIs(t, VerifySignature("s", []byte(`{"a":2}`), Sign("s", body)), ErrInvalidSignature)
}
