package repo

import (
	"context"
	"database/sql"

	"techfixer/internal/domain"
)

const taskSelect = `SELECT t.id,t.created_at,t.completed_at,t.description,t.department_id,d.name,t.author_id,a.username,t.owner_id,o.username,t.state_id,s.name
FROM tasks t
JOIN users a ON a.id=t.author_id
JOIN states s ON s.id=t.state_id
LEFT JOIN departments d ON d.id=t.department_id
LEFT JOIN users o ON o.id=t.owner_id`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var (
		t                   domain.Task
		createdAt           string
		completedAt         sql.NullString
		deptID, ownerID     sql.NullInt64
		deptName, ownerName sql.NullString
		stateID             int64
	)
	if err := scan(&t.ID, &createdAt, &completedAt, &t.Description, &deptID, &deptName,
		&t.Author.ID, &t.Author.Name, &ownerID, &ownerName, &stateID, &t.StateName); err != nil {
		return t, err
	}
	var err error
	if t.CreatedAt, err = decodeTime(createdAt); err != nil {
		return t, err
	}
	if completedAt.Valid {
		ts, err := decodeTime(completedAt.String)
		if err != nil {
			return t, err
		}
		t.CompletedAt = &ts
	}
	if deptID.Valid {
		t.Department = &domain.Ref{ID: deptID.Int64, Name: deptName.String}
	}
	if ownerID.Valid {
		t.Owner = &domain.Ref{ID: ownerID.Int64, Name: ownerName.String}
	}
	t.State = domain.StateID(stateID)
	t.Processes = []domain.Process{}
	return t, nil
}

// InsertTask writes the task row and returns its id. Processes are written
// separately once the task exists.
func (r Repo) InsertTask(ctx context.Context, t domain.Task) (int64, error) {
	var deptID, ownerID *int64
	if t.Department != nil {
		deptID = &t.Department.ID
	}
	if t.Owner != nil {
		ownerID = &t.Owner.ID
	}
	return r.insertReturningID(ctx, `INSERT INTO tasks(created_at,completed_at,description,department_id,author_id,owner_id,state_id) VALUES (?,?,?,?,?,?,?)`,
		encodeTime(t.CreatedAt), nullableTime(t.CompletedAt), t.Description, nullableID(deptID), t.Author.ID, nullableID(ownerID), int64(t.State))
}

func (r Repo) UpdateTask(ctx context.Context, t domain.Task) error {
	var deptID, ownerID *int64
	if t.Department != nil {
		deptID = &t.Department.ID
	}
	if t.Owner != nil {
		ownerID = &t.Owner.ID
	}
	return mustAffect(r.exec(ctx, `UPDATE tasks SET completed_at=?, description=?, department_id=?, owner_id=?, state_id=? WHERE id=?`,
		nullableTime(t.CompletedAt), t.Description, nullableID(deptID), nullableID(ownerID), int64(t.State), t.ID))
}

// DeleteTask removes the task together with its process log.
func (r Repo) DeleteTask(ctx context.Context, id int64) error {
	if _, err := r.exec(ctx, `DELETE FROM processes WHERE task_id=?`, id); err != nil {
		return err
	}
	return mustAffect(r.exec(ctx, `DELETE FROM tasks WHERE id=?`, id))
}

// GetTask returns the full task projection including its process log.
func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	t, err := scanTask(r.queryRow(ctx, taskSelect+` WHERE t.id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	tasks := []domain.Task{t}
	if err := r.attachProcesses(ctx, tasks); err != nil {
		return t, err
	}
	return tasks[0], nil
}

func (r Repo) ListTasks(ctx context.Context) ([]domain.Task, error) {
	return r.listTasks(ctx, taskSelect+` ORDER BY t.id`)
}

// TasksByOwnerAndStates returns the owner's tasks in any of the given states,
// newest first.
func (r Repo) TasksByOwnerAndStates(ctx context.Context, ownerID int64, states []domain.StateID) ([]domain.Task, error) {
	if len(states) == 0 {
		return []domain.Task{}, nil
	}
	args := []any{ownerID}
	for _, s := range states {
		args = append(args, int64(s))
	}
	return r.listTasks(ctx, taskSelect+` WHERE t.owner_id=? AND t.state_id IN (`+placeholders(len(states))+`) ORDER BY t.created_at DESC, t.id DESC`, args...)
}

func (r Repo) listTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := r.attachProcesses(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// processBatchSize caps the task ids bound into one process lookup, keeping
// large listings under the drivers' bind variable limits.
var processBatchSize = 500

// attachProcesses loads the process logs for tasks in batches, newest first.
func (r Repo) attachProcesses(ctx context.Context, tasks []domain.Task) error {
	index := make(map[int64]int, len(tasks))
	ids := make([]int64, 0, len(tasks))
	for i, t := range tasks {
		index[t.ID] = i
		ids = append(ids, t.ID)
	}
	for len(ids) > 0 {
		batch := ids
		if len(batch) > processBatchSize {
			batch = ids[:processBatchSize]
		}
		ids = ids[len(batch):]
		procs, err := r.listProcesses(ctx, processSelect+` WHERE p.task_id IN (`+placeholders(len(batch))+`) ORDER BY p.created_at DESC, p.id DESC`, int64Args(batch)...)
		if err != nil {
			return err
		}
		for _, p := range procs {
			i := index[p.TaskID]
			tasks[i].Processes = append(tasks[i].Processes, p)
		}
	}
	return nil
}
