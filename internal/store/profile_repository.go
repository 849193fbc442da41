/**
 * @description
 * This file implements the data access layer for the profiles table. The
 * profile row's primary key is the identity provider's ID for the same
 * person, so inserts can collide when a provisioning run is re-entered; that
 * collision is surfaced as ErrDuplicate and treated upstream as idempotent
 * re-entry rather than failure.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: The PostgreSQL driver.
 * - The service's internal domain package for the Profile model.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbank/backoffice/internal/domain"
)

// PostgresProfileRepository is the PostgreSQL implementation of ProfileRepository.
type PostgresProfileRepository struct {
	db *pgxpool.Pool
}

// NewPostgresProfileRepository creates a new instance of PostgresProfileRepository.
func NewPostgresProfileRepository(db *pgxpool.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// InsertProfile inserts a new profile row and returns the stored row.
func (r *PostgresProfileRepository) InsertProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error) {
	query := `
        INSERT INTO profiles (id, email, display_name, role, phone, kyc_status, account_status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, email, display_name, role, phone, kyc_status, account_status, created_at, updated_at
    `
	row := r.db.QueryRow(ctx, query,
		profile.ID,
		profile.Email,
		profile.DisplayName,
		profile.Role,
		profile.Phone,
		profile.KYCStatus,
		profile.AccountStatus,
	)
	stored, err := scanProfile(row)
	if err != nil {
		return nil, translatePgError(err, "insert profile")
	}
	return stored, nil
}

// GetProfile fetches a profile by its ID (which equals the identity ID).
func (r *PostgresProfileRepository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	query := `
        SELECT id, email, display_name, role, phone, kyc_status, account_status, created_at, updated_at
        FROM profiles WHERE id = $1
    `
	stored, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err, "get profile")
	}
	return stored, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.DisplayName,
		&p.Role,
		&p.Phone,
		&p.KYCStatus,
		&p.AccountStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}
