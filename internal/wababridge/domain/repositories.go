package domain

import (
	"context"
	"errors"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrContactNotFound = errors.New("contact not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrMessageNotFound = errors.New("message not found")
)

// ChannelRepository reads channel configurations; the bridge never writes them.
type ChannelRepository interface {
	GetByWebhookToken(ctx context.Context, token string) (*Channel, error)
	GetByID(ctx context.Context, id int64) (*Channel, error)
}

// ContactRepository stores counterpart contacts per tenant.
type ContactRepository interface {
	GetByNumber(ctx context.Context, number string, tenantID int64) (*Contact, error)
	GetByID(ctx context.Context, id int64) (*Contact, error)
	Create(ctx context.Context, contact *Contact) error
	UpdateProfilePic(ctx context.Context, id int64, url string) error
}

// TicketRepository stores conversation threads.
type TicketRepository interface {
	GetByID(ctx context.Context, id int64) (*Ticket, error)
	GetOpenByContactAndChannel(ctx context.Context, contactID, channelID int64) (*Ticket, error)
	Create(ctx context.Context, ticket *Ticket) error
	// UpdateLastMessage refreshes the ticket's last-message summary. For
	// inbound traffic it bumps the unread counter, clears the answered flag
	// and records the inbound timestamp; for outbound traffic it marks the
	// ticket answered.
	UpdateLastMessage(ctx context.Context, ticketID int64, lastMessage string, fromMe bool) error
}

// MessageRepository stores message records. UpdateAck is last-write-wins:
// concurrent status events for the same message carry no ordering guarantee.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	GetByID(ctx context.Context, id string) (*Message, error)
	UpdateAck(ctx context.Context, id string, ack AckStatus) error
}

// TicketResolver is the ticket-resolution collaborator: it finds the open
// ticket for a contact/channel pair or creates one. The dispatcher never
// creates tickets directly.
type TicketResolver interface {
	FindOrCreate(ctx context.Context, req ResolveTicketRequest) (*Ticket, error)
}
