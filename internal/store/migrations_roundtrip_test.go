package store

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"clubhouse/api/db/migrations"
)

func TestMigrationsRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("CLUBHOUSE_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("CLUBHOUSE_TEST_DATABASE_URL is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := OpenWithPool(ctx, dsn, ToolPool)
	if err != nil {
		t.Fatalf("OpenWithPool() error = %v", err)
	}
	defer db.Close()

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrations.FS); err != nil {
		t.Fatalf("apply migrations (pass 1): %v", err)
	}
	if err := ApplyMigrations(ctx, db, migrations.FS); err != nil {
		t.Fatalf("apply migrations twice: %v", err)
	}
	if err := RevertMigrations(ctx, db, migrations.FS); err != nil {
		t.Fatalf("revert migrations: %v", err)
	}

	var remaining int
	if err := db.QueryRowContext(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&remaining); err != nil {
		t.Fatalf("count schema_migrations: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("schema_migrations rows after revert = %d", remaining)
	}

	if err := ApplyMigrations(ctx, db, migrations.FS); err != nil {
		t.Fatalf("apply migrations (pass 2): %v", err)
	}
}

func resetPublicSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`)
	return err
}
