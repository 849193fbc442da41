/**
 * @description
 * Startup schema verification. Earlier iterations of this system probed for
 * table existence on every request; that check now runs exactly once at boot
 * and the service refuses to start against an unmigrated database. A missing
 * table mid-flight still surfaces as ErrSchemaMissing from the repositories.
 */
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// requiredTables are the tables the provisioning flow writes to.
var requiredTables = []string{"profiles", "accounts", "cards"}

// VerifySchema checks that every required table exists. It returns an error
// wrapping ErrSchemaMissing naming the first absent table.
func VerifySchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, table := range requiredTables {
		var regclass *string
		if err := db.QueryRow(ctx, `SELECT to_regclass($1)::text`, table).Scan(&regclass); err != nil {
			return fmt.Errorf("verify schema for %s: %w", table, err)
		}
		if regclass == nil {
			return fmt.Errorf("table %q does not exist: %w", table, ErrSchemaMissing)
		}
	}
	return nil
}
