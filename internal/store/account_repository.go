/**
 * @description
 * This file implements the data access layer for the account ledger. Besides
 * plain inserts and lookups it carries the corrective balance update used by
 * the provisioner's self-heal step, and the query the remediation sweep uses
 * to find profiles whose account setup never completed.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: The PostgreSQL driver.
 * - github.com/google/uuid: Row IDs for new accounts.
 * - The service's internal domain package for the Account model.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborbank/backoffice/internal/domain"
)

// PostgresAccountRepository is the PostgreSQL implementation of AccountRepository.
type PostgresAccountRepository struct {
	db *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new instance of PostgresAccountRepository.
func NewPostgresAccountRepository(db *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

// InsertAccount inserts a new account row and returns the stored row,
// including the balance as the database persisted it. The caller compares
// that balance to the requested one; Postgres NUMERIC coercion has been seen
// to round it.
func (r *PostgresAccountRepository) InsertAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	query := `
        INSERT INTO accounts (id, profile_id, account_number, account_type, balance, available_balance, currency, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id, profile_id, account_number, account_type, balance, available_balance, currency, status, created_at, updated_at
    `
	row := r.db.QueryRow(ctx, query,
		account.ID,
		account.ProfileID,
		account.AccountNumber,
		account.Type,
		account.Balance,
		account.AvailableBalance,
		account.Currency,
		account.Status,
	)
	stored, err := scanAccount(row)
	if err != nil {
		return nil, translatePgError(err, "insert account")
	}
	return stored, nil
}

// UpdateBalance sets both balance columns on an account. Used by the
// provisioner to correct a stored balance that diverged from the requested
// initial balance.
func (r *PostgresAccountRepository) UpdateBalance(ctx context.Context, accountID string, balance, available int64) (*domain.Account, error) {
	query := `
        UPDATE accounts SET balance = $2, available_balance = $3, updated_at = now()
        WHERE id = $1
        RETURNING id, profile_id, account_number, account_type, balance, available_balance, currency, status, created_at, updated_at
    `
	stored, err := scanAccount(r.db.QueryRow(ctx, query, accountID, balance, available))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err, "update balance")
	}
	return stored, nil
}

// GetAccountByProfile fetches the primary (oldest) account for a profile.
func (r *PostgresAccountRepository) GetAccountByProfile(ctx context.Context, profileID string) (*domain.Account, error) {
	query := `
        SELECT id, profile_id, account_number, account_type, balance, available_balance, currency, status, created_at, updated_at
        FROM accounts WHERE profile_id = $1
        ORDER BY created_at ASC
        LIMIT 1
    `
	stored, err := scanAccount(r.db.QueryRow(ctx, query, profileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err, "get account by profile")
	}
	return stored, nil
}

// DeleteAccount removes an account row. The provisioner calls this to undo
// its own insert when a re-entered run finds an older account already in
// place.
func (r *PostgresAccountRepository) DeleteAccount(ctx context.Context, accountID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		return translatePgError(err, "delete account")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindProfilesMissingAccounts returns customer profiles with no account row.
func (r *PostgresAccountRepository) FindProfilesMissingAccounts(ctx context.Context, limit int) ([]domain.Profile, error) {
	query := `
        SELECT p.id, p.email, p.display_name, p.role, p.phone, p.kyc_status, p.account_status, p.created_at, p.updated_at
        FROM profiles p
        LEFT JOIN accounts a ON a.profile_id = p.id
        WHERE a.id IS NULL AND p.role = 'customer'
        ORDER BY p.created_at ASC
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, translatePgError(err, "find profiles missing accounts")
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.Phone, &p.KYCStatus, &p.AccountStatus, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan orphaned profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.ProfileID,
		&a.AccountNumber,
		&a.Type,
		&a.Balance,
		&a.AvailableBalance,
		&a.Currency,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
