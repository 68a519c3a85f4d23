package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

type PgTicketRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgTicketRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgTicketRepository {
	return &PgTicketRepository{db: dbPool, logger: logger}
}

const ticketColumns = `id, contact_id, channel_id, tenant_id, status, channel, last_message,
	answered, unread_messages, last_inbound_at, created_at, updated_at`

func (r *PgTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// GetOpenByContactAndChannel returns the single non-closed ticket targeted
// by traffic for a (contact, channel) pair; newest first guards against
// historical duplicates.
func (r *PgTicketRepository) GetOpenByContactAndChannel(ctx context.Context, contactID, channelID int64) (*domain.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE contact_id = $1 AND channel_id = $2 AND status <> 'closed'
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query, contactID, channelID)
}

func (r *PgTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query := `
		INSERT INTO tickets (contact_id, channel_id, tenant_id, status, channel,
			last_message, answered, unread_messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		ticket.ContactID,
		ticket.ChannelID,
		ticket.TenantID,
		ticket.Status,
		ticket.Channel,
		ticket.LastMessage,
		ticket.Answered,
		ticket.UnreadMessages,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "error inserting ticket", "error", err, "contact_id", ticket.ContactID)
		return err
	}
	return nil
}

// UpdateLastMessage refreshes the last-message summary. Inbound traffic
// bumps the unread counter, clears the answered flag and records the
// inbound timestamp; outbound traffic marks the ticket answered.
func (r *PgTicketRepository) UpdateLastMessage(ctx context.Context, ticketID int64, lastMessage string, fromMe bool) error {
	query := `
		UPDATE tickets
		SET last_message = $2,
			answered = $3,
			unread_messages = CASE WHEN $3 THEN unread_messages ELSE unread_messages + 1 END,
			last_inbound_at = CASE WHEN $3 THEN last_inbound_at ELSE now() END,
			updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, ticketID, lastMessage, fromMe)
	if err != nil {
		r.logger.ErrorContext(ctx, "error updating ticket summary", "error", err, "ticket_id", ticketID)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *PgTicketRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var t domain.Ticket
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&t.ID,
		&t.ContactID,
		&t.ChannelID,
		&t.TenantID,
		&t.Status,
		&t.Channel,
		&t.LastMessage,
		&t.Answered,
		&t.UnreadMessages,
		&t.LastInboundAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTicketNotFound
		}
		r.logger.ErrorContext(ctx, "error querying ticket", "error", err)
		return nil, err
	}
	return &t, nil
}
