package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
	"github.com/omnidesk/wababridge/internal/wababridge/gateway"
)

// Validation failures surfaced to the transport layer as client errors.
var (
	ErrEmptyBody            = errors.New("message body is required")
	ErrMediaURLRequired     = errors.New("media url is required")
	ErrUnsupportedMediaKind = errors.New("unsupported media kind")
	ErrTemplateNameRequired = errors.New("template name is required")
)

// Gateway is the per-channel provider client used by the send services.
// Satisfied by *gateway.Client.
type Gateway interface {
	SendText(ctx context.Context, destination, text string, hsm bool) (*gateway.SendResult, error)
	SendImage(ctx context.Context, destination, mediaURL, caption string) (*gateway.SendResult, error)
	SendVideo(ctx context.Context, destination, mediaURL, caption string) (*gateway.SendResult, error)
	SendAudio(ctx context.Context, destination, mediaURL string) (*gateway.SendResult, error)
	SendDocument(ctx context.Context, destination, mediaURL, filename, caption string) (*gateway.SendResult, error)
	SendLocation(ctx context.Context, destination string, latitude, longitude float64, label, address string) (*gateway.SendResult, error)
	SendTemplate(ctx context.Context, destination, template, language string, params []string) (*gateway.SendResult, error)
	ListTemplates(ctx context.Context) ([]gateway.Template, error)
	ListOptInUsers(ctx context.Context) ([]gateway.OptInUser, error)
	OptIn(ctx context.Context, phone string) error
}

// GatewayFactory builds a short-lived provider client scoped to one
// channel's credentials, so concurrent requests never share a client with
// baked-in per-request secrets.
type GatewayFactory func(channel *domain.Channel) Gateway

// SendService implements the operator-facing outbound operations: it loads
// the ticket's contact and channel, calls the gateway and, on submission,
// persists the outbound message and broadcasts the ticket update.
type SendService struct {
	channels    domain.ChannelRepository
	contacts    domain.ContactRepository
	tickets     domain.TicketRepository
	messages    domain.MessageRepository
	broadcaster Broadcaster
	newGateway  GatewayFactory
	logger      *slog.Logger
	now         func() time.Time
}

func NewSendService(
	channels domain.ChannelRepository,
	contacts domain.ContactRepository,
	tickets domain.TicketRepository,
	messages domain.MessageRepository,
	broadcaster Broadcaster,
	newGateway GatewayFactory,
	logger *slog.Logger,
) *SendService {
	return &SendService{
		channels:    channels,
		contacts:    contacts,
		tickets:     tickets,
		messages:    messages,
		broadcaster: broadcaster,
		newGateway:  newGateway,
		logger:      logger.With("component", "send_service"),
		now:         time.Now,
	}
}

// SendText sends a plain text message on a ticket. Outside the 24h service
// window the message is flagged as an HSM so the provider accepts it.
func (s *SendService) SendText(ctx context.Context, ticketID int64, body string) (*domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}

	env, err := s.loadTicketEnv(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	hsm := !env.ticket.WithinServiceWindow(s.now())
	res, err := env.gw.SendText(ctx, env.contact.Number, body, hsm)
	if err != nil {
		outboundSendsCounter.WithLabelValues(domain.ContentText, sendResultLabel(err)).Inc()
		return nil, err
	}
	outboundSendsCounter.WithLabelValues(domain.ContentText, "submitted").Inc()

	return s.persistOutbound(ctx, env, res, outboundRecord{
		body:    body,
		kind:    domain.ContentText,
		summary: body,
	})
}

// SendMedia sends an image, video, audio or document message on a ticket.
func (s *SendService) SendMedia(ctx context.Context, ticketID int64, mediaURL, mediaKind, caption, filename string) (*domain.Message, error) {
	if mediaURL == "" {
		return nil, ErrMediaURLRequired
	}

	env, err := s.loadTicketEnv(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	var res *gateway.SendResult
	switch mediaKind {
	case domain.ContentImage:
		res, err = env.gw.SendImage(ctx, env.contact.Number, mediaURL, caption)
	case domain.ContentVideo:
		res, err = env.gw.SendVideo(ctx, env.contact.Number, mediaURL, caption)
	case domain.ContentAudio:
		res, err = env.gw.SendAudio(ctx, env.contact.Number, mediaURL)
	case domain.ContentDocument:
		if filename == "" {
			filename = "document"
		}
		res, err = env.gw.SendDocument(ctx, env.contact.Number, mediaURL, filename, caption)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMediaKind, mediaKind)
	}
	if err != nil {
		outboundSendsCounter.WithLabelValues(mediaKind, sendResultLabel(err)).Inc()
		return nil, err
	}
	outboundSendsCounter.WithLabelValues(mediaKind, "submitted").Inc()

	body := caption
	if body == "" {
		body = mediaPlaceholder(mediaKind, "")
	}
	return s.persistOutbound(ctx, env, res, outboundRecord{
		body:      body,
		kind:      mediaKind,
		mediaName: filename,
		summary:   mediaPlaceholder(mediaKind, caption),
	})
}

// SendLocation sends a map pin on a ticket.
func (s *SendService) SendLocation(ctx context.Context, ticketID int64, latitude, longitude float64, label, address string) (*domain.Message, error) {
	env, err := s.loadTicketEnv(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	res, err := env.gw.SendLocation(ctx, env.contact.Number, latitude, longitude, label, address)
	if err != nil {
		outboundSendsCounter.WithLabelValues(domain.ContentLocation, sendResultLabel(err)).Inc()
		return nil, err
	}
	outboundSendsCounter.WithLabelValues(domain.ContentLocation, "submitted").Inc()

	body := fmt.Sprintf("Location: %s\n%s\nhttps://maps.google.com/?q=%v,%v", label, address, latitude, longitude)
	return s.persistOutbound(ctx, env, res, outboundRecord{
		body:    body,
		kind:    domain.ContentLocation,
		summary: "[LOCATION]",
	})
}

// SendTemplate sends a pre-approved template. Params are positional, in
// slice order; see gateway.Client.SendTemplate for the ordering contract.
func (s *SendService) SendTemplate(ctx context.Context, ticketID int64, templateName, language string, params []string) (*domain.Message, error) {
	if strings.TrimSpace(templateName) == "" {
		return nil, ErrTemplateNameRequired
	}

	env, err := s.loadTicketEnv(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	res, err := env.gw.SendTemplate(ctx, env.contact.Number, templateName, language, params)
	if err != nil {
		outboundSendsCounter.WithLabelValues("template", sendResultLabel(err)).Inc()
		return nil, err
	}
	outboundSendsCounter.WithLabelValues("template", "submitted").Inc()

	summary := "[TEMPLATE] " + templateName
	return s.persistOutbound(ctx, env, res, outboundRecord{
		body:    summary,
		kind:    domain.ContentText,
		summary: summary,
	})
}

// ListTemplates proxies the provider's template list for a channel.
func (s *SendService) ListTemplates(ctx context.Context, channelID int64) ([]gateway.Template, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.newGateway(channel).ListTemplates(ctx)
}

// ListOptInUsers proxies the provider's opt-in user list for a channel.
func (s *SendService) ListOptInUsers(ctx context.Context, channelID int64) ([]gateway.OptInUser, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.newGateway(channel).ListOptInUsers(ctx)
}

// OptIn registers a phone number for business-initiated messaging on a
// channel.
func (s *SendService) OptIn(ctx context.Context, channelID int64, phone string) error {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return err
	}
	return s.newGateway(channel).OptIn(ctx, phone)
}

// ticketEnv bundles everything a send needs: the ticket, its contact and
// channel, and a gateway scoped to that channel.
type ticketEnv struct {
	ticket  *domain.Ticket
	contact *domain.Contact
	channel *domain.Channel
	gw      Gateway
}

func (s *SendService) loadTicketEnv(ctx context.Context, ticketID int64) (*ticketEnv, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	contact, err := s.contacts.GetByID(ctx, ticket.ContactID)
	if err != nil {
		return nil, err
	}
	channel, err := s.channels.GetByID(ctx, ticket.ChannelID)
	if err != nil {
		return nil, err
	}
	return &ticketEnv{
		ticket:  ticket,
		contact: contact,
		channel: channel,
		gw:      s.newGateway(channel),
	}, nil
}

type outboundRecord struct {
	body      string
	kind      string
	mediaName string
	summary   string
}

func (s *SendService) persistOutbound(ctx context.Context, env *ticketEnv, res *gateway.SendResult, rec outboundRecord) (*domain.Message, error) {
	id := res.MessageID
	if id == "" {
		// The provider can submit without returning an id; keep the record
		// addressable with a local one.
		id = "local-" + uuid.NewString()
	}

	msg := &domain.Message{
		ID:          id,
		TicketID:    env.ticket.ID,
		ContactID:   env.contact.ID,
		TenantID:    env.channel.TenantID,
		Body:        rec.body,
		FromMe:      true,
		ContentKind: rec.kind,
		MediaName:   rec.mediaName,
		Ack:         domain.AckPending,
		Timestamp:   s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist outbound message: %w", err)
	}

	if err := s.tickets.UpdateLastMessage(ctx, env.ticket.ID, rec.summary, true); err != nil {
		return nil, fmt.Errorf("update ticket summary: %w", err)
	}

	s.broadcastTicketUpdate(ctx, env.channel.TenantID, env.ticket)

	s.logger.InfoContext(ctx, "outbound message sent",
		"ticket_id", env.ticket.ID, "kind", rec.kind, "provider_message_id", res.MessageID)
	return msg, nil
}

func (s *SendService) broadcastTicketUpdate(ctx context.Context, tenantID int64, ticket *domain.Ticket) {
	data, err := json.Marshal(ticket)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to marshal ticket update", "error", err, "ticket_id", ticket.ID)
		return
	}
	if err := s.broadcaster.Publish(ctx, TicketUpdateSubject(tenantID), data); err != nil {
		s.logger.ErrorContext(ctx, "failed to broadcast ticket update", "error", err, "ticket_id", ticket.ID)
	}
}

func sendResultLabel(err error) string {
	var perr *gateway.ProviderError
	if errors.As(err, &perr) {
		return "rejected"
	}
	return "error"
}
