package repo

import (
	"context"
	"database/sql"

	"techfixer/internal/domain"
)

func (r Repo) GetRole(ctx context.Context, id int64) (domain.Role, error) {
	var role domain.Role
	err := r.queryRow(ctx, `SELECT id,name FROM roles WHERE id=?`, id).Scan(&role.ID, &role.Name)
	if err == sql.ErrNoRows {
		return role, ErrNotFound
	}
	return role, err
}

func (r Repo) ListRoles(ctx context.Context) ([]domain.Role, error) {
	rows, err := r.query(ctx, `SELECT id,name FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Role{}
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		res = append(res, role)
	}
	return res, rows.Err()
}

// GetState resolves a stored state row through the enumeration table.
func (r Repo) GetState(ctx context.Context, id domain.StateID) (domain.State, error) {
	var (
		rowID int64
		name  string
	)
	err := r.queryRow(ctx, `SELECT id,name FROM states WHERE id=?`, int64(id)).Scan(&rowID, &name)
	if err == sql.ErrNoRows {
		return domain.State{}, ErrNotFound
	}
	if err != nil {
		return domain.State{}, err
	}
	return domain.StateFromRow(rowID, name)
}

func (r Repo) ListStates(ctx context.Context) ([]domain.State, error) {
	rows, err := r.query(ctx, `SELECT id,name FROM states ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.State{}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		s, err := domain.StateFromRow(id, name)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
