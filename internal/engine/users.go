package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"techfixer/internal/domain"
	"techfixer/internal/engine/auth"
	"techfixer/internal/events"
	"techfixer/internal/repo"
)

type UserRegisterOptions struct {
	Username      string
	Password      string
	RoleID        *int64
	DepartmentIDs []int64
	ActorID       string
}

// RegisterUser creates a user with a hashed password. The standard role is
// assigned when none is given.
func (e Engine) RegisterUser(ctx context.Context, opts UserRegisterOptions) (u domain.User, err error) {
	defer func() { observe("user.register", err) }()
	username := strings.TrimSpace(opts.Username)
	if username == "" {
		return domain.User{}, MissingFieldError{Field: "username"}
	}
	if opts.Password == "" {
		return domain.User{}, MissingFieldError{Field: "password"}
	}
	tx, r, err := e.begin(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	taken, err := r.UsernameTaken(ctx, username, 0)
	if err != nil {
		return domain.User{}, err
	}
	if taken {
		return domain.User{}, AlreadyExistsError{Entity: "user", Name: username}
	}
	roleID := domain.RoleStandard
	if opts.RoleID != nil {
		roleID = *opts.RoleID
	}
	role, err := r.GetRole(ctx, roleID)
	if err != nil {
		return domain.User{}, notFound("role", roleID, err)
	}
	hash, err := auth.HashPassword(opts.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u = domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.Ref{ID: role.ID, Name: role.Name},
	}
	if u.ID, err = r.InsertUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.emit(ctx, tx, events.UserRegistered, "user", u.ID, opts.ActorID, events.EventPayload{
		"username": username,
		"role_id":  role.ID,
	}); err != nil {
		return domain.User{}, err
	}
	if err := e.setMemberships(ctx, tx, r, u.ID, opts.DepartmentIDs, opts.ActorID); err != nil {
		return domain.User{}, err
	}
	if u, err = r.GetUser(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// UserUpdateOptions changes only the fields that are set. DepartmentIDs
// always replaces the membership set; nil removes every membership.
type UserUpdateOptions struct {
	ID            int64
	Username      *string
	Password      *string
	RoleID        *int64
	DepartmentIDs []int64
	ActorID       string
}

func (e Engine) UpdateUser(ctx context.Context, opts UserUpdateOptions) (u domain.User, err error) {
	defer func() { observe("user.update", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if u, err = r.GetUser(ctx, opts.ID); err != nil {
		return domain.User{}, notFound("user", opts.ID, err)
	}
	payload := events.EventPayload{}
	if opts.Username != nil {
		username := strings.TrimSpace(*opts.Username)
		if username == "" {
			return domain.User{}, MissingFieldError{Field: "username"}
		}
		if username != u.Username {
			taken, err := r.UsernameTaken(ctx, username, u.ID)
			if err != nil {
				return domain.User{}, err
			}
			if taken {
				return domain.User{}, AlreadyExistsError{Entity: "user", Name: username}
			}
			payload["old_username"] = u.Username
			payload["username"] = username
			u.Username = username
		}
	}
	if opts.Password != nil {
		if *opts.Password == "" {
			return domain.User{}, MissingFieldError{Field: "password"}
		}
		if u.PasswordHash, err = auth.HashPassword(*opts.Password); err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		payload["password_changed"] = true
	}
	if opts.RoleID != nil && *opts.RoleID != u.Role.ID {
		role, err := r.GetRole(ctx, *opts.RoleID)
		if err != nil {
			return domain.User{}, notFound("role", *opts.RoleID, err)
		}
		u.Role = domain.Ref{ID: role.ID, Name: role.Name}
		payload["role_id"] = role.ID
	}
	if err := r.UpdateUser(ctx, u); err != nil {
		return domain.User{}, notFound("user", u.ID, err)
	}
	if err := e.setMemberships(ctx, tx, r, u.ID, opts.DepartmentIDs, opts.ActorID); err != nil {
		return domain.User{}, err
	}
	if err := e.emit(ctx, tx, events.UserUpdated, "user", u.ID, opts.ActorID, payload); err != nil {
		return domain.User{}, err
	}
	if u, err = r.GetUser(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// DeleteUser refuses while the user authored or owns tasks or authored
// processes. Department
// memberships are severed before the user row is removed.
func (e Engine) DeleteUser(ctx context.Context, id int64, actorID string) (err error) {
	defer func() { observe("user.delete", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	u, err := r.GetUser(ctx, id)
	if err != nil {
		return notFound("user", id, err)
	}
	n, err := r.CountUserTasks(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ConflictError{
			Entity: "user",
			ID:     id,
			Reason: fmt.Sprintf("%d authored and %d owned task(s) still reference it", len(u.AuthoredTaskIDs), len(u.OwnedTaskIDs)),
		}
	}
	if n, err = r.CountUserProcesses(ctx, id); err != nil {
		return err
	}
	if n > 0 {
		return ConflictError{Entity: "user", ID: id, Reason: fmt.Sprintf("%d authored process(es) still reference it", n)}
	}
	if err := e.setMemberships(ctx, tx, r, id, nil, actorID); err != nil {
		return err
	}
	if err := r.DeleteUser(ctx, id); err != nil {
		return notFound("user", id, err)
	}
	if err := e.emit(ctx, tx, events.UserDeleted, "user", id, actorID, events.EventPayload{"username": u.Username}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, notFound("user", id, err)
	}
	return u, nil
}

func (e Engine) GetUserByName(ctx context.Context, username string) (domain.User, error) {
	u, err := e.Repo.FindUserByName(ctx, username)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, fmt.Errorf("user %q: %w", username, repo.ErrNotFound)
	}
	return u, err
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords fail identically.
func (e Engine) Authenticate(ctx context.Context, username, password string) (u domain.User, err error) {
	defer func() { observe("user.authenticate", err) }()
	u, err = e.Repo.FindUserByName(ctx, strings.TrimSpace(username))
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}
