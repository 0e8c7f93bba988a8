package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"

	"ms-songrequest/internal/config"
	"ms-songrequest/internal/models"
)

// Open connects to the configured database and wraps it in bun.
// Postgres for deployments, SQLite for local single-process use.
func Open(cfg config.DatabaseConfig) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		err     error
		dialect schema.Dialect
	)

	switch cfg.Driver {
	case "postgres":
		sqldb, err = sql.Open("postgres", cfg.DSN)
		dialect = pgdialect.New()
	case "sqlite":
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DSN)
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	return bun.NewDB(sqldb, dialect), nil
}

// CreateTables creates every table the service uses if it does not exist
// yet. This is the SQLite path; Postgres deployments run the SQL
// migrations instead.
func CreateTables(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Settings)(nil),
		(*models.Song)(nil),
		(*models.RequestHistory)(nil),
		(*models.RequestHistoryBackup)(nil),
		(*models.EntitlementTicket)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}
