// Package http exposes the bridge's HTTP surface: the public Gupshup
// webhook endpoints and the authenticated operator send API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

// EventDispatcher processes one webhook envelope after the HTTP
// acknowledgment has been written.
type EventDispatcher interface {
	Dispatch(ctx context.Context, channel *domain.Channel, env *domain.WebhookEnvelope) error
}

// WebhookHandler serves the provider-facing webhook endpoints. The POST
// endpoint acknowledges receipt as soon as the token resolves to a channel;
// processing happens afterwards so slow internal work never triggers
// provider-side retries, and a processing failure can no longer affect the
// response.
type WebhookHandler struct {
	channels   domain.ChannelRepository
	dispatcher EventDispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(channels domain.ChannelRepository, dispatcher EventDispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		channels:   channels,
		dispatcher: dispatcher,
		logger:     logger.With("handler", "webhook"),
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Get("/wabahooks/gupshup/verify/{token}", h.handleVerify)
	r.Get("/wabahooks/gupshup/status/{token}", h.handleStatus)
	r.Post("/wabahooks/gupshup/{token}", h.handleReceive)
}

// handleVerify answers the provider's webhook-URL validation: echo the
// challenge when the token matches a known channel, 403 otherwise.
func (h *WebhookHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	if _, err := h.channels.GetByWebhookToken(ctx, token); err != nil {
		h.logger.WarnContext(ctx, "webhook verification with unknown token")
		writeJSONError(w, "invalid token", http.StatusForbidden)
		return
	}

	if challenge := r.URL.Query().Get("hub.challenge"); challenge != "" {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "webhook verified"})
}

func (h *WebhookHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	channel, err := h.channels.GetByWebhookToken(ctx, token)
	if err != nil {
		writeJSONError(w, "channel not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  channel.Status,
		"channel": channel.Name,
		"number":  channel.Number,
	})
}

// handleReceive accepts one webhook envelope. Once the token is validated
// the provider always gets a 200; decoding or processing failures are
// logged, never surfaced.
func (h *WebhookHandler) handleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)
	token := chi.URLParam(r, "token")

	channel, err := h.channels.GetByWebhookToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrChannelNotFound) {
			logger.WarnContext(ctx, "webhook with unknown token")
			writeJSONError(w, "channel not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "channel lookup failed", "error", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read webhook body", "error", err)
		writeJSONError(w, "unreadable body", http.StatusBadRequest)
		return
	}

	// Acknowledge before processing.
	w.WriteHeader(http.StatusOK)

	go h.process(context.WithoutCancel(ctx), logger, channel, body)
}

// process runs after the 200 is on the wire. A panic or error here is
// confined to this one event.
func (h *WebhookHandler) process(ctx context.Context, logger *slog.Logger, channel *domain.Channel, body []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "panic while processing webhook event", "panic", rec)
		}
	}()

	var env domain.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.ErrorContext(ctx, "failed to decode webhook envelope", "error", err)
		return
	}

	if err := h.dispatcher.Dispatch(ctx, channel, &env); err != nil {
		logger.ErrorContext(ctx, "failed to process webhook event",
			"error", err, "event_type", env.Type)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"message": message})
}
