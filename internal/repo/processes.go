package repo

import (
	"context"
	"database/sql"

	"techfixer/internal/domain"
)

const processSelect = `SELECT p.id,p.task_id,p.description,p.created_at,p.author_id,COALESCE(u.username,'') FROM processes p LEFT JOIN users u ON u.id=p.author_id`

func scanProcess(scan func(...any) error) (domain.Process, error) {
	var (
		p  domain.Process
		ts string
	)
	if err := scan(&p.ID, &p.TaskID, &p.Description, &ts, &p.Author.ID, &p.Author.Name); err != nil {
		return p, err
	}
	var err error
	p.CreatedAt, err = decodeTime(ts)
	return p, err
}

// InsertProcess appends a log entry. There is no update or delete counterpart.
func (r Repo) InsertProcess(ctx context.Context, p domain.Process) (int64, error) {
	return r.insertReturningID(ctx, `INSERT INTO processes(task_id,author_id,description,created_at) VALUES (?,?,?,?)`,
		p.TaskID, p.Author.ID, p.Description, encodeTime(p.CreatedAt))
}

func (r Repo) GetProcess(ctx context.Context, id int64) (domain.Process, error) {
	p, err := scanProcess(r.queryRow(ctx, processSelect+` WHERE p.id=?`, id).Scan)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProcesses(ctx context.Context) ([]domain.Process, error) {
	return r.listProcesses(ctx, processSelect+` ORDER BY p.id`)
}

func (r Repo) listProcesses(ctx context.Context, query string, args ...any) ([]domain.Process, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Process{}
	for rows.Next() {
		p, err := scanProcess(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
