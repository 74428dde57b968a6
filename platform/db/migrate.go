// Package db provides database connection infrastructure.
// This is part of the platform layer and contains no business logic.
package db

import (
	"context"
	"database/sql"
	"io/fs"

	"fleetcrm_backend/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending goose migrations from the embedded
// filesystem. It opens a short-lived database/sql connection via the pgx
// stdlib driver; the application pool is created afterwards.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig, fsys fs.FS) error {
	conn, err := sql.Open("pgx", cfg.GetDatabaseURL())
	if err != nil {
		return err
	}
	defer conn.Close()

	goose.SetBaseFS(fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, conn, ".")
}
