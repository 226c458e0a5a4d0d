package channelsinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

type PostgresChannelRepository struct {
	db *sqlx.DB
}

var _ channels.ChannelRepository = (*PostgresChannelRepository)(nil)

func NewPostgresChannelRepository(db *sqlx.DB) *PostgresChannelRepository {
	return &PostgresChannelRepository{db: db}
}

// dbChannel is an intermediate struct for database operations
type dbChannel struct {
	ID        string          `db:"id"`
	OrgID     string          `db:"org_id"`
	Name      string          `db:"name"`
	Config    json.RawMessage `db:"config"`
	IsActive  bool            `db:"is_active"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func toDBChannel(ch channels.Channel) (*dbChannel, error) {
	configJSON, err := json.Marshal(ch.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal channel config: %w", err)
	}

	return &dbChannel{
		ID:        ch.ID.String(),
		OrgID:     ch.OrgID.String(),
		Name:      ch.Name,
		Config:    configJSON,
		IsActive:  ch.IsActive,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}, nil
}

func toDomainChannel(dbC *dbChannel) (*channels.Channel, error) {
	var config channels.Config
	if err := json.Unmarshal(dbC.Config, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal channel config: %w", err)
	}

	return &channels.Channel{
		ID:        kernel.NewChannelID(dbC.ID),
		OrgID:     kernel.NewOrgID(dbC.OrgID),
		Name:      dbC.Name,
		Config:    config,
		IsActive:  dbC.IsActive,
		CreatedAt: dbC.CreatedAt,
		UpdatedAt: dbC.UpdatedAt,
	}, nil
}

func (r *PostgresChannelRepository) Save(ctx context.Context, channel channels.Channel) error {
	dbC, err := toDBChannel(channel)
	if err != nil {
		return errx.Wrap(err, "failed to convert channel", errx.TypeInternal)
	}

	query := `
		INSERT INTO channels (
			id, org_id, name, config, is_active, created_at, updated_at
		) VALUES (
			:id, :org_id, :name, :config, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			config = EXCLUDED.config,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.NamedExecContext(ctx, query, dbC)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" && pqErr.Constraint == "channels_name_org_id_key" {
				return channels.ErrChannelAlreadyExists().
					WithDetail("name", channel.Name).
					WithDetail("org_id", channel.OrgID.String())
			}
		}
		return errx.Wrap(err, "failed to save channel", errx.TypeInternal).
			WithDetail("channel_id", channel.ID.String())
	}

	return nil
}

func (r *PostgresChannelRepository) FindByID(ctx context.Context, id kernel.ChannelID) (*channels.Channel, error) {
	query := `
		SELECT id, org_id, name, config, is_active, created_at, updated_at
		FROM channels
		WHERE id = $1`

	var dbC dbChannel
	err := r.db.GetContext(ctx, &dbC, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, channels.ErrChannelNotFound().WithDetail("channel_id", id.String())
		}
		return nil, errx.Wrap(err, "failed to find channel by id", errx.TypeInternal).
			WithDetail("channel_id", id.String())
	}

	return toDomainChannel(&dbC)
}

func (r *PostgresChannelRepository) Delete(ctx context.Context, id kernel.ChannelID, orgID kernel.OrgID) error {
	query := `DELETE FROM channels WHERE id = $1 AND org_id = $2`

	result, err := r.db.ExecContext(ctx, query, id.String(), orgID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete channel", errx.TypeInternal).
			WithDetail("channel_id", id.String())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	if rowsAffected == 0 {
		return channels.ErrChannelNotFound().WithDetail("channel_id", id.String())
	}

	return nil
}

func (r *PostgresChannelRepository) FindByOrg(ctx context.Context, orgID kernel.OrgID) ([]*channels.Channel, error) {
	query := `
		SELECT id, org_id, name, config, is_active, created_at, updated_at
		FROM channels
		WHERE org_id = $1
		ORDER BY name ASC`

	return r.selectChannels(ctx, query, orgID.String())
}

func (r *PostgresChannelRepository) FindActive(ctx context.Context, orgID kernel.OrgID) ([]*channels.Channel, error) {
	query := `
		SELECT id, org_id, name, config, is_active, created_at, updated_at
		FROM channels
		WHERE org_id = $1 AND is_active = true
		ORDER BY name ASC`

	return r.selectChannels(ctx, query, orgID.String())
}

func (r *PostgresChannelRepository) ExistsByName(ctx context.Context, name string, orgID kernel.OrgID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM channels WHERE name = $1 AND org_id = $2)`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, name, orgID.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to check channel existence by name", errx.TypeInternal).
			WithDetail("name", name)
	}

	return exists, nil
}

func (r *PostgresChannelRepository) CountByOrg(ctx context.Context, orgID kernel.OrgID) (int, error) {
	query := `SELECT COUNT(*) FROM channels WHERE org_id = $1`

	var count int
	err := r.db.GetContext(ctx, &count, query, orgID.String())
	if err != nil {
		return 0, errx.Wrap(err, "failed to count channels by org", errx.TypeInternal)
	}

	return count, nil
}

func (r *PostgresChannelRepository) selectChannels(ctx context.Context, query string, args ...any) ([]*channels.Channel, error) {
	var dbChannels []dbChannel
	err := r.db.SelectContext(ctx, &dbChannels, query, args...)
	if err != nil {
		return nil, errx.Wrap(err, "failed to select channels", errx.TypeInternal)
	}

	result := make([]*channels.Channel, 0, len(dbChannels))
	for i := range dbChannels {
		ch, err := toDomainChannel(&dbChannels[i])
		if err != nil {
			return nil, errx.Wrap(err, "failed to convert channel", errx.TypeInternal)
		}
		result = append(result, ch)
	}

	return result, nil
}
