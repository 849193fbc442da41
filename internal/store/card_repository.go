/**
 * @description
 * This file implements the data access layer for the cards table.
 */
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbank/backoffice/internal/domain"
)

// PostgresCardRepository is the PostgreSQL implementation of CardRepository.
type PostgresCardRepository struct {
	db *pgxpool.Pool
}

// NewPostgresCardRepository creates a new instance of PostgresCardRepository.
func NewPostgresCardRepository(db *pgxpool.Pool) *PostgresCardRepository {
	return &PostgresCardRepository{db: db}
}

// InsertCard persists a card issued by the card issuer.
func (r *PostgresCardRepository) InsertCard(ctx context.Context, card *domain.Card) (*domain.Card, error) {
	if card.ID == "" {
		card.ID = uuid.NewString()
	}
	query := `
        INSERT INTO cards (id, account_id, card_number, expiry_date, cvv, status, daily_limit, monthly_limit)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING created_at
    `
	err := r.db.QueryRow(ctx, query,
		card.ID,
		card.AccountID,
		card.CardNumber,
		card.ExpiryDate,
		card.CVV,
		card.Status,
		card.DailyLimit,
		card.MonthlyLimit,
	).Scan(&card.CreatedAt)
	if err != nil {
		return nil, translatePgError(err, "insert card")
	}
	return card, nil
}

// GetCardsByAccount lists all cards bound to an account.
func (r *PostgresCardRepository) GetCardsByAccount(ctx context.Context, accountID string) ([]domain.Card, error) {
	query := `
        SELECT id, account_id, card_number, expiry_date, status, daily_limit, monthly_limit, created_at
        FROM cards WHERE account_id = $1
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, translatePgError(err, "get cards by account")
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		var c domain.Card
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CardNumber, &c.ExpiryDate, &c.Status, &c.DailyLimit, &c.MonthlyLimit, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
