package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

// TicketResolver is the default ticket-resolution collaborator: it reuses
// the open ticket for a (contact, channel) pair and creates one when none
// exists, keeping at most one open ticket targeted by traffic.
type TicketResolver struct {
	tickets domain.TicketRepository
	logger  *slog.Logger
}

func NewTicketResolver(tickets domain.TicketRepository, logger *slog.Logger) *TicketResolver {
	return &TicketResolver{
		tickets: tickets,
		logger:  logger.With("component", "ticket_resolver"),
	}
}

func (r *TicketResolver) FindOrCreate(ctx context.Context, req domain.ResolveTicketRequest) (*domain.Ticket, error) {
	ticket, err := r.tickets.GetOpenByContactAndChannel(ctx, req.Contact.ID, req.ChannelID)
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, domain.ErrTicketNotFound) {
		return nil, fmt.Errorf("look up open ticket: %w", err)
	}

	// The unread counter stays at zero here; UpdateLastMessage bumps it
	// once per inbound message, including the one that opened the ticket.
	ticket = &domain.Ticket{
		ContactID:   req.Contact.ID,
		ChannelID:   req.ChannelID,
		TenantID:    req.TenantID,
		Status:      domain.TicketStatusPending,
		Channel:     req.ChannelTag,
		LastMessage: req.PreviewBody,
		Answered:    req.FromMe,
	}
	if err := r.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	r.logger.InfoContext(ctx, "ticket created",
		"ticket_id", ticket.ID, "contact_id", req.Contact.ID, "channel_id", req.ChannelID)
	return ticket, nil
}
