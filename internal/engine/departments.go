package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"techfixer/internal/domain"
	"techfixer/internal/events"
	"techfixer/internal/repo"
)

// CreateDepartment inserts a uniquely named department and adds the given
// users as its initial members.
func (e Engine) CreateDepartment(ctx context.Context, name string, userIDs []int64, actorID string) (d domain.Department, err error) {
	defer func() { observe("department.create", err) }()
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Department{}, MissingFieldError{Field: "name"}
	}
	tx, r, err := e.begin(ctx)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	if err := departmentNameFree(ctx, r, name, 0); err != nil {
		return domain.Department{}, err
	}
	id, err := r.InsertDepartment(ctx, name)
	if err != nil {
		return domain.Department{}, err
	}
	if err := e.emit(ctx, tx, events.DepartmentCreated, "department", id, actorID, events.EventPayload{"name": name}); err != nil {
		return domain.Department{}, err
	}
	if err := e.touchMemberships(ctx, tx, r, id, userIDs, actorID); err != nil {
		return domain.Department{}, err
	}
	if d, err = r.GetDepartment(ctx, id); err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// DepartmentUpdateOptions renames a department when Name is set and
// synchronizes members only when UserIDs is non-empty.
type DepartmentUpdateOptions struct {
	ID      int64
	Name    *string
	UserIDs []int64
	ActorID string
}

func (e Engine) UpdateDepartment(ctx context.Context, opts DepartmentUpdateOptions) (d domain.Department, err error) {
	defer func() { observe("department.update", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	current, err := r.DepartmentRef(ctx, opts.ID)
	if err != nil {
		return domain.Department{}, notFound("department", opts.ID, err)
	}
	payload := events.EventPayload{}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return domain.Department{}, MissingFieldError{Field: "name"}
		}
		if name != current.Name {
			if err := departmentNameFree(ctx, r, name, opts.ID); err != nil {
				return domain.Department{}, err
			}
			if err := r.RenameDepartment(ctx, opts.ID, name); err != nil {
				return domain.Department{}, notFound("department", opts.ID, err)
			}
			payload["old_name"] = current.Name
			payload["name"] = name
		}
	}
	if err := e.touchMemberships(ctx, tx, r, opts.ID, opts.UserIDs, opts.ActorID); err != nil {
		return domain.Department{}, err
	}
	if err := e.emit(ctx, tx, events.DepartmentUpdated, "department", opts.ID, opts.ActorID, payload); err != nil {
		return domain.Department{}, err
	}
	if d, err = r.GetDepartment(ctx, opts.ID); err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

// DeleteDepartment refuses while the department has members or routed tasks.
func (e Engine) DeleteDepartment(ctx context.Context, id int64, actorID string) (err error) {
	defer func() { observe("department.delete", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	d, err := r.GetDepartment(ctx, id)
	if err != nil {
		return notFound("department", id, err)
	}
	if len(d.Users) > 0 || len(d.TaskIDs) > 0 {
		return ConflictError{
			Entity: "department",
			ID:     id,
			Reason: fmt.Sprintf("%d member(s) and %d task(s) still reference it", len(d.Users), len(d.TaskIDs)),
		}
	}
	if err := r.DeleteDepartment(ctx, id); err != nil {
		return notFound("department", id, err)
	}
	if err := e.emit(ctx, tx, events.DepartmentDeleted, "department", id, actorID, events.EventPayload{"name": d.Name}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetDepartment(ctx context.Context, id int64) (domain.Department, error) {
	d, err := e.Repo.GetDepartment(ctx, id)
	if err != nil {
		return domain.Department{}, notFound("department", id, err)
	}
	return d, nil
}

func (e Engine) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return e.Repo.ListDepartments(ctx)
}

// departmentNameFree fails with AlreadyExists when another department holds name.
func departmentNameFree(ctx context.Context, r repo.Repo, name string, exceptID int64) error {
	existing, err := r.FindDepartmentByName(ctx, name)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != exceptID:
		return AlreadyExistsError{Entity: "department", Name: name}
	default:
		return nil
	}
}
