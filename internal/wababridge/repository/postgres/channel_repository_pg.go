// Package postgres holds the pgx implementations of the bridge's
// repositories. Concurrent writes to the same row are serialized by the
// database; the repositories add no locking of their own.
package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

type PgChannelRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgChannelRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgChannelRepository {
	return &PgChannelRepository{db: dbPool, logger: logger}
}

const channelColumns = `id, name, number, api_key, app_name, webhook_token, tenant_id, status, is_default`

// GetByWebhookToken resolves the channel addressed by an inbound webhook
// URL. Exactly one channel owns a given token.
func (r *PgChannelRepository) GetByWebhookToken(ctx context.Context, token string) (*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE webhook_token = $1`
	return r.scanOne(ctx, query, token)
}

func (r *PgChannelRepository) GetByID(ctx context.Context, id int64) (*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *PgChannelRepository) scanOne(ctx context.Context, query string, arg any) (*domain.Channel, error) {
	var ch domain.Channel
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&ch.ID,
		&ch.Name,
		&ch.Number,
		&ch.APIKey,
		&ch.AppName,
		&ch.WebhookToken,
		&ch.TenantID,
		&ch.Status,
		&ch.IsDefault,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChannelNotFound
		}
		r.logger.ErrorContext(ctx, "error querying channel", "error", err)
		return nil, err
	}
	return &ch, nil
}
