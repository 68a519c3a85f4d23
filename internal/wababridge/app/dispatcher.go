// Package app holds the bridge's application services: the webhook event
// dispatcher, delivery-status correlation, ticket resolution and the
// outbound send services.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
	"github.com/omnidesk/wababridge/internal/wababridge/media"
)

// MediaFetcher downloads remote media referenced by inbound payloads.
type MediaFetcher interface {
	Fetch(ctx context.Context, mediaURL string) (*media.Download, error)
}

// MediaStore persists fetched media bytes under a name.
type MediaStore interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

// Broadcaster emits tenant-scoped notification events. Satisfied by
// messagebroker.NatsClient.
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// TicketUpdateSubject returns the broadcast subject for ticket updates of
// one tenant.
func TicketUpdateSubject(tenantID int64) string {
	return "ticket.updated.v1." + strconv.FormatInt(tenantID, 10)
}

// Dispatcher classifies webhook envelopes and turns them into contact,
// ticket and message mutations. It holds no state across invocations;
// concurrent envelopes are independent.
type Dispatcher struct {
	contacts    domain.ContactRepository
	ticketRepo  domain.TicketRepository
	resolver    domain.TicketResolver
	messages    domain.MessageRepository
	correlator  *AckCorrelator
	fetcher     MediaFetcher
	store       MediaStore
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewDispatcher(
	contacts domain.ContactRepository,
	ticketRepo domain.TicketRepository,
	resolver domain.TicketResolver,
	messages domain.MessageRepository,
	correlator *AckCorrelator,
	fetcher MediaFetcher,
	store MediaStore,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		contacts:    contacts,
		ticketRepo:  ticketRepo,
		resolver:    resolver,
		messages:    messages,
		correlator:  correlator,
		fetcher:     fetcher,
		store:       store,
		broadcaster: broadcaster,
		logger:      logger.With("component", "dispatcher"),
	}
}

// Dispatch processes one webhook envelope for the channel the webhook token
// resolved to. Unrecognized envelope types are ignored without error; the
// caller has already acknowledged receipt to the provider.
func (d *Dispatcher) Dispatch(ctx context.Context, channel *domain.Channel, env *domain.WebhookEnvelope) error {
	start := time.Now()
	result := "processed"
	defer func() {
		webhookEventsCounter.WithLabelValues(env.Type, result).Inc()
		webhookProcessingDuration.WithLabelValues(env.Type).Observe(time.Since(start).Seconds())
	}()

	d.logger.InfoContext(ctx, "webhook envelope received",
		"event_type", env.Type, "app", env.App, "tenant_id", channel.TenantID)

	switch env.Type {
	case domain.EventTypeMessage:
		var payload domain.InboundMessagePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			result = "error"
			return fmt.Errorf("decode inbound message payload: %w", err)
		}
		if err := d.handleInboundMessage(ctx, channel, &payload); err != nil {
			result = "error"
			return err
		}
		return nil

	case domain.EventTypeMessageEvent:
		var payload domain.MessageEventPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			result = "error"
			return fmt.Errorf("decode message-event payload: %w", err)
		}
		if err := d.handleMessageEvent(ctx, &payload); err != nil {
			result = "error"
			return err
		}
		return nil

	case domain.EventTypeUserEvent:
		// Opt-in/opt-out is observed and logged only; an extension point.
		var payload domain.UserEventPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			result = "error"
			return fmt.Errorf("decode user-event payload: %w", err)
		}
		d.logger.InfoContext(ctx, "user event observed",
			"phone", payload.Phone, "user_event", payload.Type)
		return nil

	default:
		result = "ignored"
		d.logger.InfoContext(ctx, "unhandled webhook envelope type", "event_type", env.Type)
		return nil
	}
}

func (d *Dispatcher) handleInboundMessage(ctx context.Context, channel *domain.Channel, payload *domain.InboundMessagePayload) error {
	contact, err := d.findOrCreateContact(ctx, channel, &payload.Sender)
	if err != nil {
		return err
	}

	ticket, err := d.resolver.FindOrCreate(ctx, domain.ResolveTicketRequest{
		Contact:     contact,
		ChannelID:   channel.ID,
		TenantID:    channel.TenantID,
		PreviewBody: previewBody(payload),
		FromMe:      false,
		ChannelTag:  domain.ChannelTag,
	})
	if err != nil {
		return err
	}

	msg := &domain.Message{
		ID:        payload.ID,
		TicketID:  ticket.ID,
		ContactID: contact.ID,
		TenantID:  channel.TenantID,
		FromMe:    false,
		Timestamp: inboundTimestamp(payload.Timestamp),
	}
	if payload.Context != nil {
		msg.QuotedMsgID = payload.Context.GsID
	}

	summary := d.buildContent(ctx, payload, msg)

	if err := d.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("persist inbound message: %w", err)
	}
	inboundMessagesCounter.WithLabelValues(msg.ContentKind).Inc()

	if err := d.ticketRepo.UpdateLastMessage(ctx, ticket.ID, summary, false); err != nil {
		return fmt.Errorf("update ticket summary: %w", err)
	}

	d.broadcastTicketUpdate(ctx, channel.TenantID, ticket)
	return nil
}

// buildContent fills in body, content kind and media fields on msg from the
// payload's declared kind, and returns the ticket's last-message summary.
// Every kind, including unrecognized ones, yields exactly one message body;
// nothing is silently dropped.
func (d *Dispatcher) buildContent(ctx context.Context, payload *domain.InboundMessagePayload, msg *domain.Message) string {
	switch payload.Type {
	case domain.ContentText:
		msg.ContentKind = domain.ContentText
		msg.Body = payload.Text
		return payload.Text

	case domain.ContentImage, domain.ContentVideo, domain.ContentAudio, domain.ContentDocument:
		placeholder := mediaPlaceholder(payload.Type, payload.Caption)
		download, err := d.fetcher.Fetch(ctx, payload.MediaURL())
		if err == nil {
			if _, saveErr := d.store.Save(ctx, download.Filename, download.Data); saveErr != nil {
				err = saveErr
			} else {
				msg.ContentKind = payload.Type
				msg.MediaName = download.Filename
				msg.Body = payload.Caption
				if msg.Body == "" {
					msg.Body = download.Filename
				}
				return placeholder
			}
		}
		// Degraded path: the event is not re-queued or escalated, the
		// message is kept as a tagged placeholder without media fields.
		mediaDownloadFailuresCounter.Inc()
		d.logger.WarnContext(ctx, "media acquisition failed, storing placeholder",
			"error", err, "kind", payload.Type, "provider_message_id", msg.ID)
		msg.ContentKind = payload.Type
		msg.Body = placeholder
		return placeholder

	case domain.ContentLocation:
		msg.ContentKind = domain.ContentLocation
		msg.Body = locationBody(payload)
		return "[LOCATION]"

	case domain.ContentContact:
		msg.ContentKind = domain.ContentContact
		msg.Body = contactCardBody(payload.Contacts)
		return "[CONTACT]"

	default:
		d.logger.WarnContext(ctx, "unhandled inbound content kind, storing placeholder",
			"kind", payload.Type, "provider_message_id", msg.ID)
		msg.ContentKind = domain.ContentText
		msg.Body = "[" + payload.Type + "]"
		return msg.Body
	}
}

func (d *Dispatcher) handleMessageEvent(ctx context.Context, payload *domain.MessageEventPayload) error {
	ack, ok := domain.AckFromProviderStatus(payload.EventType)
	if !ok {
		ackEventsCounter.WithLabelValues("unknown_status").Inc()
		d.logger.InfoContext(ctx, "unhandled message-event status",
			"event_status", payload.EventType, "provider_message_id", payload.GsID)
		return nil
	}
	return d.correlator.Correlate(ctx, payload.GsID, ack)
}

func (d *Dispatcher) findOrCreateContact(ctx context.Context, channel *domain.Channel, sender *domain.InboundSender) (*domain.Contact, error) {
	number := domain.NormalizePhone(sender.Phone, sender.CountryCode, sender.DialCode)

	contact, err := d.contacts.GetByNumber(ctx, number, channel.TenantID)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, domain.ErrContactNotFound) {
		return nil, fmt.Errorf("look up contact: %w", err)
	}

	contact = &domain.Contact{
		Name:      sender.Name,
		Number:    number,
		TenantID:  channel.TenantID,
		ChannelID: channel.ID,
	}
	if contact.Name == "" {
		contact.Name = number
	}
	if err := d.contacts.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	d.logger.InfoContext(ctx, "contact created", "number", number, "tenant_id", channel.TenantID)
	return contact, nil
}

// broadcastTicketUpdate emits the tenant-scoped ticket update. Broadcast is
// best effort: a broker failure must not fail an already-persisted event.
func (d *Dispatcher) broadcastTicketUpdate(ctx context.Context, tenantID int64, ticket *domain.Ticket) {
	data, err := json.Marshal(ticket)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to marshal ticket update", "error", err, "ticket_id", ticket.ID)
		return
	}
	if err := d.broadcaster.Publish(ctx, TicketUpdateSubject(tenantID), data); err != nil {
		d.logger.ErrorContext(ctx, "failed to broadcast ticket update", "error", err, "ticket_id", ticket.ID)
	}
}

// previewBody extracts the best human-readable preview for ticket resolution.
func previewBody(payload *domain.InboundMessagePayload) string {
	switch {
	case payload.Text != "":
		return payload.Text
	case payload.Caption != "":
		return payload.Caption
	case payload.Name != "":
		return payload.Name
	case payload.Label != "":
		return payload.Label
	default:
		return "[" + strings.ToUpper(payload.Type) + "]"
	}
}

func mediaPlaceholder(kind, caption string) string {
	tag := "[" + strings.ToUpper(kind) + "]"
	if caption == "" {
		return tag
	}
	return tag + " " + caption
}

func locationBody(payload *domain.InboundMessagePayload) string {
	return fmt.Sprintf("Location: %s\n%s\nhttps://maps.google.com/?q=%v,%v",
		payload.Label, payload.Address, payload.Latitude, payload.Longitude)
}

func contactCardBody(contacts []domain.SharedContact) string {
	var b strings.Builder
	b.WriteString("Shared contacts:\n")
	for _, c := range contacts {
		b.WriteString("\n")
		b.WriteString("Name: " + c.Name.FormattedName + "\n")
		if len(c.Phones) > 0 {
			b.WriteString("Phone: " + c.Phones[0].Phone + "\n")
		}
	}
	return b.String()
}

// inboundTimestamp parses the provider's unix-milliseconds string, falling
// back to now when absent or malformed.
func inboundTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Now()
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.UnixMilli(millis)
}
