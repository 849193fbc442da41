/**
 * @description
 * This package implements the identity provider contract against a local
 * Postgres table instead of the hosted identity service. It exists for local
 * development and integration testing, selected with IDENTITY_PROVIDER=local.
 * Credentials are stored bcrypt-hashed; authentication against them is owned
 * by the gateway, not this service.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: The PostgreSQL driver.
 * - golang.org/x/crypto/bcrypt: Credential hashing.
 * - The identityclient package for the shared Identity shape and typed errors.
 */
package localidp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/harborbank/backoffice/pkg/identityclient"
)

const minPasswordLength = 8

// Provider is a Postgres-backed identity provider.
type Provider struct {
	db *pgxpool.Pool
}

// NewProvider creates a new local identity provider.
func NewProvider(db *pgxpool.Pool) *Provider {
	return &Provider{db: db}
}

// CreateIdentity stores a new login identity with a bcrypt-hashed credential.
// It enforces the same failure taxonomy as the hosted provider so the caller
// cannot tell the two apart.
func (p *Provider) CreateIdentity(ctx context.Context, email, password string, metadata map[string]string) (*identityclient.Identity, error) {
	if !strings.Contains(email, "@") {
		return nil, identityclient.ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, identityclient.ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash credential: %w", err)
	}

	id := uuid.NewString()
	query := `INSERT INTO identities (id, email, password_hash) VALUES ($1, $2, $3)`
	if _, err := p.db.Exec(ctx, query, id, strings.ToLower(email), string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, identityclient.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	return &identityclient.Identity{ID: id, Email: strings.ToLower(email)}, nil
}

// DeleteIdentity removes an identity row. Deleting an unknown ID is not an
// error; compensation may run after a partially failed insert.
func (p *Provider) DeleteIdentity(ctx context.Context, id string) error {
	_, err := p.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}
