package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

type PgMessageRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgMessageRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgMessageRepository {
	return &PgMessageRepository{db: dbPool, logger: logger}
}

func (r *PgMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, ticket_id, contact_id, tenant_id, body, from_me,
			content_kind, media_name, quoted_msg_id, ack, message_ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.ContactID,
		msg.TenantID,
		msg.Body,
		msg.FromMe,
		msg.ContentKind,
		msg.MediaName,
		msg.QuotedMsgID,
		string(msg.Ack),
		msg.Timestamp,
	).Scan(&msg.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "error inserting message", "error", err, "message_id", msg.ID)
		return err
	}
	return nil
}

func (r *PgMessageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	query := `
		SELECT id, ticket_id, contact_id, tenant_id, body, from_me,
			content_kind, media_name, quoted_msg_id, ack, message_ts, created_at
		FROM messages
		WHERE id = $1
	`
	var m domain.Message
	var ack string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&m.ID,
		&m.TicketID,
		&m.ContactID,
		&m.TenantID,
		&m.Body,
		&m.FromMe,
		&m.ContentKind,
		&m.MediaName,
		&m.QuotedMsgID,
		&ack,
		&m.Timestamp,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		r.logger.ErrorContext(ctx, "error querying message", "error", err, "message_id", id)
		return nil, err
	}
	m.Ack = domain.AckStatus(ack)
	return &m, nil
}

// UpdateAck sets the acknowledgment state. Last write wins: status events
// carry no ordering guarantee and duplicates are tolerated.
func (r *PgMessageRepository) UpdateAck(ctx context.Context, id string, ack domain.AckStatus) error {
	query := `UPDATE messages SET ack = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, string(ack))
	if err != nil {
		r.logger.ErrorContext(ctx, "error updating message ack", "error", err, "message_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}
