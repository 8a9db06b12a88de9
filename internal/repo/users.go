package repo

import (
	"context"
	"database/sql"

	"techfixer/internal/domain"
)

const userSelect = `SELECT u.id,u.username,u.password_hash,u.role_id,r.name FROM users u JOIN roles r ON r.id=u.role_id`

func scanUser(scan func(...any) error) (domain.User, error) {
	var u domain.User
	err := scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role.ID, &u.Role.Name)
	return u, err
}

// GetUser returns the user with its memberships and derived task lists.
func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.queryRow(ctx, userSelect+` WHERE u.id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	return r.hydrateUser(ctx, u)
}

// FindUserByName looks a user up by its unique username.
func (r Repo) FindUserByName(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.queryRow(ctx, userSelect+` WHERE u.username=?`, username).Scan)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	return r.hydrateUser(ctx, u)
}

// UsernameTaken reports whether a user other than exceptID owns username.
func (r Repo) UsernameTaken(ctx context.Context, username string, exceptID int64) (bool, error) {
	n, err := r.count(ctx, `SELECT COUNT(*) FROM users WHERE username=? AND id<>?`, username, exceptID)
	return n > 0, err
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.query(ctx, userSelect+` ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	res := make([]domain.User, 0, len(users))
	for _, u := range users {
		full, err := r.hydrateUser(ctx, u)
		if err != nil {
			return nil, err
		}
		res = append(res, full)
	}
	return res, nil
}

func (r Repo) hydrateUser(ctx context.Context, u domain.User) (domain.User, error) {
	var err error
	u.Departments, err = r.refs(ctx, `SELECT d.id,d.name FROM user_departments ud JOIN departments d ON d.id=ud.department_id WHERE ud.user_id=? ORDER BY d.id`, u.ID)
	if err != nil {
		return u, err
	}
	if u.AuthoredTaskIDs, err = r.int64Column(ctx, `SELECT id FROM tasks WHERE author_id=? ORDER BY id`, u.ID); err != nil {
		return u, err
	}
	if u.OwnedTaskIDs, err = r.int64Column(ctx, `SELECT id FROM tasks WHERE owner_id=? ORDER BY id`, u.ID); err != nil {
		return u, err
	}
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, u domain.User) (int64, error) {
	return r.insertReturningID(ctx, `INSERT INTO users(username,password_hash,role_id) VALUES (?,?,?)`,
		u.Username, u.PasswordHash, u.Role.ID)
}

func (r Repo) UpdateUser(ctx context.Context, u domain.User) error {
	return mustAffect(r.exec(ctx, `UPDATE users SET username=?, password_hash=?, role_id=? WHERE id=?`,
		u.Username, u.PasswordHash, u.Role.ID, u.ID))
}

func (r Repo) DeleteUser(ctx context.Context, id int64) error {
	return mustAffect(r.exec(ctx, `DELETE FROM users WHERE id=?`, id))
}

// CountUserTasks returns how many tasks the user authored or owns.
func (r Repo) CountUserTasks(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM tasks WHERE author_id=? OR owner_id=?`, userID, userID)
}

// CountUserProcesses returns how many processes the user authored.
func (r Repo) CountUserProcesses(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM processes WHERE author_id=?`, userID)
}

func (r Repo) refs(ctx context.Context, query string, args ...any) ([]domain.Ref, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Ref{}
	for rows.Next() {
		var ref domain.Ref
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// UserRef resolves a user id to its id/username pair without hydration.
func (r Repo) UserRef(ctx context.Context, id int64) (domain.Ref, error) {
	var ref domain.Ref
	err := r.queryRow(ctx, `SELECT id,username FROM users WHERE id=?`, id).Scan(&ref.ID, &ref.Name)
	if err == sql.ErrNoRows {
		return ref, ErrNotFound
	}
	return ref, err
}
