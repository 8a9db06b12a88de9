// Package app wires configuration, storage and the engine together.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"techfixer/internal/config"
	"techfixer/internal/db"
	"techfixer/internal/engine"
	"techfixer/internal/migrate"
)

// Open connects to the configured database, applies migrations, seeds the
// fixed catalog rows and returns a ready engine. The caller closes the
// returned connection.
func Open(ctx context.Context, workspace string, cfg *config.Config) (engine.Engine, *sql.DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return engine.Engine{}, nil, err
	}
	conn, dialect, err := db.Open(db.Config{
		Workspace: workspace,
		Driver:    cfg.Database.Driver,
		DSN:       cfg.Database.DSN,
	})
	if err != nil {
		return engine.Engine{}, nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return engine.Engine{}, nil, err
	}
	if err := migrate.Seed(ctx, conn, dialect, cfg.Seed.Departments); err != nil {
		conn.Close()
		return engine.Engine{}, nil, fmt.Errorf("seed: %w", err)
	}
	return engine.New(conn, dialect, cfg), conn, nil
}
