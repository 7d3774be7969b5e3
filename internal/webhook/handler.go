// Package webhook receives WhatsApp Cloud API webhook deliveries.
//
// GET requests answer the subscription handshake. POST requests carry event
// notifications signed with the app secret in X-Hub-Signature-256.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vietddude/wacloud/internal/core/domain"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	signaturePrefix = "sha256="
	maxBodyBytes    = 1 << 20
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

// EventFunc handles one parsed delivery. A returned error is logged; the
// delivery is still acknowledged so the platform does not redeliver it.
type EventFunc func(ctx context.Context, event *domain.WebhookEvent) error

// Config holds the webhook credentials.
type Config struct {
	// VerifyToken must match hub.verify_token during subscription.
	VerifyToken string
	// AppSecret signs deliveries. Empty disables verification.
	AppSecret string
}

// Handler implements http.Handler.
type Handler struct {
	cfg     Config
	onEvent EventFunc
	log     *slog.Logger
}

// NewHandler creates a webhook handler. onEvent may be nil.
func NewHandler(cfg Config, onEvent EventFunc) *Handler {
	return &Handler{
		cfg:     cfg,
		onEvent: onEvent,
		log:     slog.Default().With("component", "webhook"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.verify(w, r)
	case http.MethodPost:
		h.receive(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.cfg.VerifyToken == "" ||
		!hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(h.cfg.VerifyToken)) {
		h.log.Warn("Webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	h.log.Info("Webhook subscription verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if h.cfg.AppSecret != "" {
		if err := VerifySignature(h.cfg.AppSecret, body, r.Header.Get(signatureHeader)); err != nil {
			h.log.Warn("Webhook signature rejected", "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var event domain.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	h.log.Debug("Webhook received",
		"object", event.Object,
		"messages", len(event.Messages()),
		"statuses", len(event.Statuses()),
	)

	if h.onEvent != nil {
		if err := h.onEvent(r.Context(), &event); err != nil {
			h.log.Error("Webhook handler failed", "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
}

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of body.
func VerifySignature(secret string, body []byte, header string) error {
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
