package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// translatePgError maps raw driver errors onto the package sentinels so
// callers can branch with errors.Is instead of inspecting SQLSTATE codes.
func translatePgError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case pgErr.Code == "42P01": // undefined_table
			return fmt.Errorf("%s: %w", op, ErrSchemaMissing)
		case strings.HasPrefix(pgErr.Code, "23"): // other integrity violations
			return fmt.Errorf("%s (%s): %w", op, pgErr.ConstraintName, ErrConstraint)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
