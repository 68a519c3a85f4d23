package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnidesk/wababridge/internal/wababridge/domain"
)

type PgContactRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPgContactRepository(dbPool *pgxpool.Pool, logger *slog.Logger) *PgContactRepository {
	return &PgContactRepository{db: dbPool, logger: logger}
}

const contactColumns = `id, name, number, profile_pic_url, tenant_id, channel_id`

func (r *PgContactRepository) GetByNumber(ctx context.Context, number string, tenantID int64) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE number = $1 AND tenant_id = $2`
	return r.scanOne(ctx, query, number, tenantID)
}

func (r *PgContactRepository) GetByID(ctx context.Context, id int64) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

// Create inserts the contact and fills in its generated id. The
// (tenant_id, number) unique constraint makes lazy creation idempotent at
// the storage layer.
func (r *PgContactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	query := `
		INSERT INTO contacts (name, number, profile_pic_url, tenant_id, channel_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		contact.Name,
		contact.Number,
		contact.ProfilePicURL,
		contact.TenantID,
		contact.ChannelID,
	).Scan(&contact.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "error inserting contact", "error", err, "number", contact.Number)
		return err
	}
	return nil
}

func (r *PgContactRepository) UpdateProfilePic(ctx context.Context, id int64, url string) error {
	query := `UPDATE contacts SET profile_pic_url = $2 WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, url)
	if err != nil {
		r.logger.ErrorContext(ctx, "error updating contact profile pic", "error", err, "contact_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrContactNotFound
	}
	return nil
}

func (r *PgContactRepository) scanOne(ctx context.Context, query string, args ...any) (*domain.Contact, error) {
	var c domain.Contact
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&c.ID,
		&c.Name,
		&c.Number,
		&c.ProfilePicURL,
		&c.TenantID,
		&c.ChannelID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}
		r.logger.ErrorContext(ctx, "error querying contact", "error", err)
		return nil, err
	}
	return &c, nil
}
