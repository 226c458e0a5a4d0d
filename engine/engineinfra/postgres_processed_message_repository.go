package engineinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// PostgresProcessedMessageRepository es la autoridad de idempotencia.
// Insertar el marcador ANTES de cualquier efecto: si Meta reintenta el
// webhook, la segunda inserción no inserta nada y el mensaje se descarta.
type PostgresProcessedMessageRepository struct {
	db *sqlx.DB
}

var _ engine.ProcessedMessageRepository = (*PostgresProcessedMessageRepository)(nil)

func NewPostgresProcessedMessageRepository(db *sqlx.DB) *PostgresProcessedMessageRepository {
	return &PostgresProcessedMessageRepository{db: db}
}

func (r *PostgresProcessedMessageRepository) MarkProcessed(ctx context.Context, channelID kernel.ChannelID, messageID kernel.MessageID) (bool, error) {
	query := `
		INSERT INTO processed_messages (channel_id, message_id, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (channel_id, message_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, channelID.String(), messageID.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to mark message processed", errx.TypeInternal).
			WithDetail("message_id", messageID.String())
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, errx.Wrap(err, "failed to get rows affected", errx.TypeInternal)
	}

	return inserted > 0, nil
}

func (r *PostgresProcessedMessageRepository) CleanOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM processed_messages WHERE processed_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, errx.Wrap(err, "failed to clean processed messages", errx.TypeInternal)
	}

	return result.RowsAffected()
}
