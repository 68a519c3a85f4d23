package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/omnidesk/wababridge/internal/wababridge/app"
	"github.com/omnidesk/wababridge/internal/wababridge/domain"
	"github.com/omnidesk/wababridge/internal/wababridge/gateway"
)

// Sender is the outbound application service behind the operator API.
// Satisfied by *app.SendService.
type Sender interface {
	SendText(ctx context.Context, ticketID int64, body string) (*domain.Message, error)
	SendMedia(ctx context.Context, ticketID int64, mediaURL, mediaKind, caption, filename string) (*domain.Message, error)
	SendLocation(ctx context.Context, ticketID int64, latitude, longitude float64, label, address string) (*domain.Message, error)
	SendTemplate(ctx context.Context, ticketID int64, templateName, language string, params []string) (*domain.Message, error)
	ListTemplates(ctx context.Context, channelID int64) ([]gateway.Template, error)
	ListOptInUsers(ctx context.Context, channelID int64) ([]gateway.OptInUser, error)
	OptIn(ctx context.Context, channelID int64, phone string) error
}

// SendTextRequest is the DTO for POST /messages/text/{ticketID}.
type SendTextRequest struct {
	Message string `json:"message" validate:"required,min=1"`
}

// SendMediaRequest is the DTO for POST /messages/media/{ticketID}.
type SendMediaRequest struct {
	MediaURL  string `json:"mediaUrl" validate:"required,url"`
	MediaType string `json:"mediaType" validate:"required,oneof=image video audio document"`
	Caption   string `json:"caption"`
	FileName  string `json:"fileName"`
}

// SendLocationRequest is the DTO for POST /messages/location/{ticketID}.
type SendLocationRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Label     string  `json:"label"`
	Address   string  `json:"address"`
}

// SendTemplateRequest is the DTO for POST /messages/template/{ticketID}.
// Params are positional: the provider API has no named placeholders, so the
// slice order must match the template's declared slot order.
type SendTemplateRequest struct {
	TemplateName string   `json:"templateName" validate:"required"`
	LanguageCode string   `json:"languageCode"`
	Params       []string `json:"params"`
}

// OptInRequest is the DTO for POST /channels/{channelID}/optin.
type OptInRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// SendMessageResponse echoes the persisted outbound record.
type SendMessageResponse struct {
	MessageID string           `json:"messageId"`
	TicketID  int64            `json:"ticketId"`
	Ack       domain.AckStatus `json:"ack"`
}

// MessageHandler serves the authenticated operator send API.
type MessageHandler struct {
	sender   Sender
	validate *validator.Validate
	logger   *slog.Logger
}

func NewMessageHandler(sender Sender, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		sender:   sender,
		validate: validator.New(),
		logger:   logger.With("handler", "message"),
	}
}

func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/messages/text/{ticketID}", h.handleSendText)
	r.Post("/messages/media/{ticketID}", h.handleSendMedia)
	r.Post("/messages/location/{ticketID}", h.handleSendLocation)
	r.Post("/messages/template/{ticketID}", h.handleSendTemplate)
	r.Get("/channels/{channelID}/templates", h.handleListTemplates)
	r.Get("/channels/{channelID}/optins", h.handleListOptIns)
	r.Post("/channels/{channelID}/optin", h.handleOptIn)
}

func (h *MessageHandler) handleSendText(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	var req SendTextRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.sender.SendText(ctx, ticketID, req.Message)
	if err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendMessageResponse{MessageID: msg.ID, TicketID: msg.TicketID, Ack: msg.Ack})
}

func (h *MessageHandler) handleSendMedia(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	var req SendMediaRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.sender.SendMedia(ctx, ticketID, req.MediaURL, req.MediaType, req.Caption, req.FileName)
	if err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendMessageResponse{MessageID: msg.ID, TicketID: msg.TicketID, Ack: msg.Ack})
}

func (h *MessageHandler) handleSendLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	var req SendLocationRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.sender.SendLocation(ctx, ticketID, req.Latitude, req.Longitude, req.Label, req.Address)
	if err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendMessageResponse{MessageID: msg.ID, TicketID: msg.TicketID, Ack: msg.Ack})
}

func (h *MessageHandler) handleSendTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ticketID, ok := h.pathID(w, r, "ticketID")
	if !ok {
		return
	}

	var req SendTemplateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	msg, err := h.sender.SendTemplate(ctx, ticketID, req.TemplateName, req.LanguageCode, req.Params)
	if err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendMessageResponse{MessageID: msg.ID, TicketID: msg.TicketID, Ack: msg.Ack})
}

func (h *MessageHandler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, ok := h.pathID(w, r, "channelID")
	if !ok {
		return
	}

	templates, err := h.sender.ListTemplates(ctx, channelID)
	if err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *MessageHandler) handleListOptIns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, ok := h.pathID(w, r, "channelID")
	if !ok {
		return
	}

	users, err := h.sender.ListOptInUsers(ctx, channelID)
	if err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *MessageHandler) handleOptIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, ok := h.pathID(w, r, "channelID")
	if !ok {
		return
	}

	var req OptInRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.sender.OptIn(ctx, channelID, req.Phone); err != nil {
		h.writeSendError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "opt-in registered"})
}

func (h *MessageHandler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil {
		writeJSONError(w, "invalid "+param, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *MessageHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeJSONError(w, "invalid request payload", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSONError(w, "validation failed: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeSendError maps application errors onto HTTP statuses: validation
// failures are client errors, provider rejections are bad-gateway, missing
// entities are 404s.
func (h *MessageHandler) writeSendError(ctx context.Context, w http.ResponseWriter, err error) {
	var perr *gateway.ProviderError
	switch {
	case errors.Is(err, app.ErrEmptyBody),
		errors.Is(err, app.ErrMediaURLRequired),
		errors.Is(err, app.ErrUnsupportedMediaKind),
		errors.Is(err, app.ErrTemplateNameRequired):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrTicketNotFound),
		errors.Is(err, domain.ErrContactNotFound),
		errors.Is(err, domain.ErrChannelNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &perr):
		h.logger.WarnContext(ctx, "provider rejected send", "error", err)
		writeJSONError(w, perr.Message, http.StatusBadGateway)
	default:
		h.logger.ErrorContext(ctx, "send failed", "error", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
