package loyaltyinfra

import (
	"context"
	"database/sql"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/jmoiron/sqlx"

	"github.com/Abraxas-365/chatflow/loyalty"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// PostgresLoyaltyStore delega en funciones almacenadas: la lógica de
// sellos y canjes vive en la base junto a los datos del programa.
type PostgresLoyaltyStore struct {
	db *sqlx.DB
}

var (
	_ loyalty.Prefilter    = (*PostgresLoyaltyStore)(nil)
	_ loyalty.CardProvider = (*PostgresLoyaltyStore)(nil)
)

func NewPostgresLoyaltyStore(db *sqlx.DB) *PostgresLoyaltyStore {
	return &PostgresLoyaltyStore{db: db}
}

func (s *PostgresLoyaltyStore) HandleMessage(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID, text string) (*loyalty.PrefilterResult, error) {
	query := `SELECT handled, reply FROM loyalty_handle_message($1, $2, $3)`

	var result loyalty.PrefilterResult
	err := s.db.GetContext(ctx, &result, query, channelID.String(), customerID.String(), text)
	if err != nil {
		if err == sql.ErrNoRows {
			return &loyalty.PrefilterResult{Handled: false}, nil
		}
		return nil, errx.Wrap(err, "loyalty prefilter query failed", errx.TypeInternal).
			WithDetail("channel_id", channelID.String())
	}

	return &result, nil
}

func (s *PostgresLoyaltyStore) GetCard(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (*loyalty.StampCard, error) {
	query := `
		SELECT customer_id, channel_id, stamps, required, reward_text, image_url, updated_at
		FROM loyalty_card_state($1, $2)`

	var card loyalty.StampCard
	err := s.db.GetContext(ctx, &card, query, channelID.String(), customerID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, loyalty.ErrCardNotFound().
				WithDetail("customer_id", customerID.String())
		}
		return nil, errx.Wrap(err, "failed to load stamp card", errx.TypeInternal).
			WithDetail("customer_id", customerID.String())
	}

	return &card, nil
}
