package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"
)

//go:embed scripts/initdb.sql
var initSQL string

// schemaVersion is the row initdb.sql inserts into leaselens_meta. Bump both
// together when the schema changes.
const schemaVersion = 1

// EnsureBootstrapped applies scripts/initdb.sql unless leaselens_meta already
// records schemaVersion. The script is idempotent, so a partial earlier run is
// simply repeated.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	current, err := appliedVersion(ctx, db)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}
	return runBootstrap(ctx, db)
}

// appliedVersion returns the highest recorded schema version, or 0 on a fresh database.
func appliedVersion(ctx context.Context, db *sql.DB) (int, error) {
	var present bool
	if err := db.QueryRowContext(ctx,
		`SELECT to_regclass('leaselens_meta') IS NOT NULL`).Scan(&present); err != nil {
		return 0, fmt.Errorf("meta table check failed: %w", err)
	}
	if !present {
		return 0, nil
	}

	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM leaselens_meta`).Scan(&v); err != nil {
		return 0, fmt.Errorf("meta version check failed: %w", err)
	}
	return int(v.Int64), nil
}

func runBootstrap(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bootstrap: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, initSQL); err != nil {
		return fmt.Errorf("apply initdb.sql: %w", err)
	}
	return tx.Commit()
}
