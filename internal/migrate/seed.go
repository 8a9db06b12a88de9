package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"techfixer/internal/db"
	"techfixer/internal/domain"
)

var seedRoles = []domain.Role{
	{ID: domain.RoleAdministrator, Name: "administrator"},
	{ID: domain.RoleStandard, Name: "standard"},
}

// Seed inserts the fixed states, the roles and the given departments into
// their tables when those tables are empty. Running it again is a no-op.
func Seed(ctx context.Context, conn *sql.DB, dialect db.Dialect, departments []string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	empty, err := tableEmpty(ctx, tx, "states")
	if err != nil {
		return err
	}
	if empty {
		for _, s := range domain.StateRows {
			if _, err := tx.ExecContext(ctx, dialect.Rebind(`INSERT INTO states(id,name) VALUES (?,?)`), int64(s.ID), s.Name); err != nil {
				return fmt.Errorf("seed state %s: %w", s.Name, err)
			}
		}
	}
	empty, err = tableEmpty(ctx, tx, "roles")
	if err != nil {
		return err
	}
	if empty {
		for _, r := range seedRoles {
			if _, err := tx.ExecContext(ctx, dialect.Rebind(`INSERT INTO roles(id,name) VALUES (?,?)`), r.ID, r.Name); err != nil {
				return fmt.Errorf("seed role %s: %w", r.Name, err)
			}
		}
	}
	empty, err = tableEmpty(ctx, tx, "departments")
	if err != nil {
		return err
	}
	if empty {
		for _, name := range departments {
			if _, err := tx.ExecContext(ctx, dialect.Rebind(`INSERT INTO departments(name) VALUES (?)`), name); err != nil {
				return fmt.Errorf("seed department %s: %w", name, err)
			}
		}
	}
	return tx.Commit()
}

func tableEmpty(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return n == 0, nil
}
