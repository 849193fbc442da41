/**
 * @description
 * This file defines the interfaces for the data access layer (repositories)
 * along with the sentinel errors the Postgres implementations translate raw
 * driver failures into. The provisioner branches on these sentinels instead of
 * string-matching database errors.
 *
 * @notes
 * - Any component that needs to interact with the database should depend on
 *   these interfaces, not on the concrete PostgreSQL implementation.
 */
package store

import (
	"context"
	"errors"

	"github.com/harborbank/backoffice/internal/domain"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// ErrSchemaMissing is returned when a statement references a table that does
// not exist. This is a deployment error, not a data error.
var ErrSchemaMissing = errors.New("schema missing")

// ErrConstraint is returned for integrity-constraint violations other than
// unique-key collisions (check constraints, foreign keys, not-null).
var ErrConstraint = errors.New("constraint violation")

// ProfileRepository defines the contract for the profiles table.
type ProfileRepository interface {
	InsertProfile(ctx context.Context, profile *domain.Profile) (*domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
}

// AccountRepository defines the contract for the account ledger.
type AccountRepository interface {
	InsertAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
	UpdateBalance(ctx context.Context, accountID string, balance, available int64) (*domain.Account, error)
	GetAccountByProfile(ctx context.Context, profileID string) (*domain.Account, error)
	// DeleteAccount removes an account row. Only used as a compensating
	// action when a re-entered provisioning run inserted a duplicate.
	DeleteAccount(ctx context.Context, accountID string) error
	// FindProfilesMissingAccounts returns customer profiles that have no
	// account row, the leftover state after an exhausted account-creation
	// retry. Used by the remediation sweep.
	FindProfilesMissingAccounts(ctx context.Context, limit int) ([]domain.Profile, error)
}

// CardRepository defines the contract for the cards table.
type CardRepository interface {
	InsertCard(ctx context.Context, card *domain.Card) (*domain.Card, error)
	GetCardsByAccount(ctx context.Context, accountID string) ([]domain.Card, error)
}
