package engine

import (
	"context"
	"database/sql"

	"techfixer/internal/domain"
	"techfixer/internal/events"
	"techfixer/internal/repo"
)

// ProcessSpec describes one log entry to append. Its timestamp is always
// taken at insertion.
type ProcessSpec struct {
	Description string
	AuthorID    int64
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Description  string
	DepartmentID *int64
	AuthorID     int64
	OwnerID      *int64
	StateID      *domain.StateID
	Processes    []ProcessSpec
	ActorID      string
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (t domain.Task, err error) {
	defer func() { observe("task.create", err) }()
	if opts.AuthorID == 0 {
		return domain.Task{}, ErrMissingAuthor
	}
	tx, r, err := e.begin(ctx)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t = domain.Task{
		CreatedAt:   e.now(),
		Description: opts.Description,
	}
	if opts.DepartmentID != nil {
		ref, err := r.DepartmentRef(ctx, *opts.DepartmentID)
		if err != nil {
			return domain.Task{}, notFound("department", *opts.DepartmentID, err)
		}
		t.Department = &ref
	}
	if t.Author, err = r.UserRef(ctx, opts.AuthorID); err != nil {
		return domain.Task{}, notFound("user", opts.AuthorID, err)
	}
	if opts.OwnerID != nil {
		ref, err := r.UserRef(ctx, *opts.OwnerID)
		if err != nil {
			return domain.Task{}, notFound("user", *opts.OwnerID, err)
		}
		t.Owner = &ref
	}
	stateID := domain.StateActive
	if opts.StateID != nil {
		stateID = *opts.StateID
	}
	state, err := r.GetState(ctx, stateID)
	if err != nil {
		return domain.Task{}, notFound("state", int64(stateID), err)
	}
	t.State, t.StateName = state.ID, state.Name
	if t.State.IsTerminal() {
		completed := t.CreatedAt
		t.CompletedAt = &completed
	}

	if t.ID, err = r.InsertTask(ctx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.emit(ctx, tx, events.TaskCreated, "task", t.ID, opts.ActorID, events.EventPayload{
		"author_id":   t.Author.ID,
		"state_id":    t.State,
		"description": t.Description,
	}); err != nil {
		return domain.Task{}, err
	}
	for _, spec := range opts.Processes {
		if _, err := e.appendProcess(ctx, tx, r, t.ID, spec, opts.ActorID); err != nil {
			return domain.Task{}, err
		}
	}
	created, err := r.GetTask(ctx, t.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return created, nil
}

// TaskUpdateOptions replaces department and owner wholesale: a nil pointer
// clears the reference. StateID and Description are only applied when set.
type TaskUpdateOptions struct {
	ID           int64
	DepartmentID *int64
	OwnerID      *int64
	StateID      *domain.StateID
	Description  *string
	Processes    []ProcessSpec
	ActorID      string
}

// UpdateTask mutates a task that has not reached Finished.
func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions) (err error) {
	defer func() { observe("task.update", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := r.GetTask(ctx, opts.ID)
	if err != nil {
		return notFound("task", opts.ID, err)
	}
	if t.State.IsTerminal() {
		return ErrTerminalState
	}
	changes := events.EventPayload{}

	t.Department = nil
	if opts.DepartmentID != nil {
		ref, err := r.DepartmentRef(ctx, *opts.DepartmentID)
		if err != nil {
			return notFound("department", *opts.DepartmentID, err)
		}
		t.Department = &ref
	}
	changes["department_id"] = refID(t.Department)

	t.Owner = nil
	if opts.OwnerID != nil {
		ref, err := r.UserRef(ctx, *opts.OwnerID)
		if err != nil {
			return notFound("user", *opts.OwnerID, err)
		}
		t.Owner = &ref
	}
	changes["owner_id"] = refID(t.Owner)

	if opts.StateID != nil && *opts.StateID != t.State {
		state, err := r.GetState(ctx, *opts.StateID)
		if err != nil {
			return notFound("state", int64(*opts.StateID), err)
		}
		changes["from_state_id"] = t.State
		t.State, t.StateName = state.ID, state.Name
		changes["state_id"] = t.State
		if t.State.IsTerminal() {
			completed := e.now()
			t.CompletedAt = &completed
		}
	}
	if opts.Description != nil && *opts.Description != t.Description {
		t.Description = *opts.Description
		changes["description"] = true
	}
	if err := r.UpdateTask(ctx, t); err != nil {
		return notFound("task", t.ID, err)
	}
	for _, spec := range opts.Processes {
		if _, err := e.appendProcess(ctx, tx, r, t.ID, spec, opts.ActorID); err != nil {
			return err
		}
	}
	if err := e.emit(ctx, tx, events.TaskUpdated, "task", t.ID, opts.ActorID, changes); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteTask removes a task and its process log. Finished tasks may be deleted.
func (e Engine) DeleteTask(ctx context.Context, id int64, actorID string) (err error) {
	defer func() { observe("task.delete", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := r.DeleteTask(ctx, id); err != nil {
		return notFound("task", id, err)
	}
	if err := e.emit(ctx, tx, events.TaskDeleted, "task", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, notFound("task", id, err)
	}
	return t, nil
}

func (e Engine) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx)
}

// PendingTasksForOwner returns the user's Active, InProgress and Paused tasks,
// newest first.
func (e Engine) PendingTasksForOwner(ctx context.Context, userID int64) ([]domain.Task, error) {
	if _, err := e.Repo.UserRef(ctx, userID); err != nil {
		return nil, notFound("user", userID, err)
	}
	return e.Repo.TasksByOwnerAndStates(ctx, userID, domain.PendingStates)
}

// AddProcess appends one log entry to an unfinished task.
func (e Engine) AddProcess(ctx context.Context, taskID int64, spec ProcessSpec, actorID string) (p domain.Process, err error) {
	defer func() { observe("process.add", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return domain.Process{}, err
	}
	defer tx.Rollback()
	t, err := r.GetTask(ctx, taskID)
	if err != nil {
		return domain.Process{}, notFound("task", taskID, err)
	}
	if t.State.IsTerminal() {
		return domain.Process{}, ErrTerminalState
	}
	if p, err = e.appendProcess(ctx, tx, r, taskID, spec, actorID); err != nil {
		return domain.Process{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

func (e Engine) GetProcess(ctx context.Context, id int64) (domain.Process, error) {
	p, err := e.Repo.GetProcess(ctx, id)
	if err != nil {
		return domain.Process{}, notFound("process", id, err)
	}
	return p, nil
}

func (e Engine) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	return e.Repo.ListProcesses(ctx)
}

// appendProcess inserts a process for an existing task inside tx.
func (e Engine) appendProcess(ctx context.Context, tx *sql.Tx, r repo.Repo, taskID int64, spec ProcessSpec, actorID string) (domain.Process, error) {
	author, err := r.UserRef(ctx, spec.AuthorID)
	if err != nil {
		return domain.Process{}, notFound("user", spec.AuthorID, err)
	}
	p := domain.Process{
		TaskID:      taskID,
		Description: spec.Description,
		CreatedAt:   e.now(),
		Author:      author,
	}
	if p.ID, err = r.InsertProcess(ctx, p); err != nil {
		return domain.Process{}, err
	}
	if err := e.emit(ctx, tx, events.ProcessAdded, "task", taskID, actorID, events.EventPayload{
		"process_id": p.ID,
		"author_id":  author.ID,
	}); err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

func refID(ref *domain.Ref) any {
	if ref == nil {
		return nil
	}
	return ref.ID
}
