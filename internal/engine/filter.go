package engine

import (
	"context"

	"techfixer/internal/domain"
)

// FilterTasks returns every task matching all populated fields of f. An
// empty filter returns all tasks. Results are newest first.
func (e Engine) FilterTasks(ctx context.Context, f domain.TaskFilter) (tasks []domain.Task, err error) {
	defer func() { observe("task.filter", err) }()
	return e.Repo.FilterTasks(ctx, f)
}
