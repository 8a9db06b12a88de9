package repo

import (
	"context"
	"database/sql"
	"time"

	"techfixer/internal/domain"
)

func (r Repo) GetDepartment(ctx context.Context, id int64) (domain.Department, error) {
	var d domain.Department
	err := r.queryRow(ctx, `SELECT id,name FROM departments WHERE id=?`, id).Scan(&d.ID, &d.Name)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	return r.hydrateDepartment(ctx, d)
}

// FindDepartmentByName looks a department up by its unique name.
func (r Repo) FindDepartmentByName(ctx context.Context, name string) (domain.Department, error) {
	var d domain.Department
	err := r.queryRow(ctx, `SELECT id,name FROM departments WHERE name=?`, name).Scan(&d.ID, &d.Name)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	if err != nil {
		return d, err
	}
	return r.hydrateDepartment(ctx, d)
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	refs, err := r.refs(ctx, `SELECT id,name FROM departments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Department, 0, len(refs))
	for _, ref := range refs {
		d, err := r.hydrateDepartment(ctx, domain.Department{ID: ref.ID, Name: ref.Name})
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r Repo) hydrateDepartment(ctx context.Context, d domain.Department) (domain.Department, error) {
	var err error
	d.Users, err = r.refs(ctx, `SELECT u.id,u.username FROM user_departments ud JOIN users u ON u.id=ud.user_id WHERE ud.department_id=? ORDER BY u.id`, d.ID)
	if err != nil {
		return d, err
	}
	d.TaskIDs, err = r.int64Column(ctx, `SELECT id FROM tasks WHERE department_id=? ORDER BY id`, d.ID)
	return d, err
}

func (r Repo) InsertDepartment(ctx context.Context, name string) (int64, error) {
	return r.insertReturningID(ctx, `INSERT INTO departments(name) VALUES (?)`, name)
}

func (r Repo) RenameDepartment(ctx context.Context, id int64, name string) error {
	return mustAffect(r.exec(ctx, `UPDATE departments SET name=? WHERE id=?`, name, id))
}

func (r Repo) DeleteDepartment(ctx context.Context, id int64) error {
	return mustAffect(r.exec(ctx, `DELETE FROM departments WHERE id=?`, id))
}

// Memberships returns the user's department edges ordered by department id.
func (r Repo) Memberships(ctx context.Context, userID int64) ([]domain.Membership, error) {
	rows, err := r.query(ctx, `SELECT user_id,department_id,created_at FROM user_departments WHERE user_id=? ORDER BY department_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Membership{}
	for rows.Next() {
		var (
			m  domain.Membership
			ts string
		)
		if err := rows.Scan(&m.UserID, &m.DepartmentID, &ts); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = decodeTime(ts); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// AddMembership inserts the edge unless it already exists. It reports whether
// a row was written.
func (r Repo) AddMembership(ctx context.Context, userID, departmentID int64, at time.Time) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM user_departments WHERE user_id=? AND department_id=?`, userID, departmentID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := r.exec(ctx, `INSERT INTO user_departments(user_id,department_id,created_at) VALUES (?,?,?)`,
		userID, departmentID, encodeTime(at)); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveMembership deletes the edge by department id. It reports whether a
// row was removed.
func (r Repo) RemoveMembership(ctx context.Context, userID, departmentID int64) (bool, error) {
	res, err := r.exec(ctx, `DELETE FROM user_departments WHERE user_id=? AND department_id=?`, userID, departmentID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) ClearMemberships(ctx context.Context, userID int64) error {
	_, err := r.exec(ctx, `DELETE FROM user_departments WHERE user_id=?`, userID)
	return err
}

// DepartmentRef resolves a department id without hydration.
func (r Repo) DepartmentRef(ctx context.Context, id int64) (domain.Ref, error) {
	var ref domain.Ref
	err := r.queryRow(ctx, `SELECT id,name FROM departments WHERE id=?`, id).Scan(&ref.ID, &ref.Name)
	if err == sql.ErrNoRows {
		return ref, ErrNotFound
	}
	return ref, err
}
