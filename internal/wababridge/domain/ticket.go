package domain

import (
	"database/sql"
	"time"
)

// Ticket statuses used by the bridge. Other statuses may exist upstream;
// the bridge only targets open tickets.
const (
	TicketStatusPending = "pending"
	TicketStatusOpen    = "open"
	TicketStatusClosed  = "closed"
)

// serviceWindow is WhatsApp's customer-service window: free-form messages
// are only deliverable within 24h of the contact's last inbound message,
// after that a pre-approved template (HSM) is required.
const serviceWindow = 24 * time.Hour

// Ticket is the active conversation thread between a contact and a channel.
// At most one non-closed ticket per (contact, channel) pair receives
// inbound and outbound traffic.
type Ticket struct {
	ID             int64
	ContactID      int64
	ChannelID      int64
	TenantID       int64
	Status         string
	Channel        string // transport tag, e.g. ChannelTag
	LastMessage    string
	Answered       bool
	UnreadMessages int
	LastInboundAt  sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// WithinServiceWindow reports whether a free-form outbound message is still
// deliverable, i.e. the contact wrote in less than 24h ago.
func (t *Ticket) WithinServiceWindow(now time.Time) bool {
	if !t.LastInboundAt.Valid {
		return false
	}
	return now.Sub(t.LastInboundAt.Time) < serviceWindow
}

// ResolveTicketRequest carries what the ticket-resolution collaborator needs
// to find the open ticket for a contact or create one.
type ResolveTicketRequest struct {
	Contact     *Contact
	ChannelID   int64
	TenantID    int64
	PreviewBody string
	FromMe      bool
	ChannelTag  string
}
