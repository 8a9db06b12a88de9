package repo

import (
	"context"
	"strings"

	"techfixer/internal/domain"
)

// predicate is one conjunct of a task filter query.
type predicate struct {
	clause string
	args   []any
}

// predicateFunc contributes a predicate when its filter field is populated.
type predicateFunc func(domain.TaskFilter) (predicate, bool)

// taskPredicates is folded in order over the base task query.
var taskPredicates = []predicateFunc{
	idEquals("t.author_id", func(f domain.TaskFilter) *int64 { return f.AuthorID }),
	idEquals("t.owner_id", func(f domain.TaskFilter) *int64 { return f.OwnerID }),
	func(f domain.TaskFilter) (predicate, bool) {
		if f.StateID == nil {
			return predicate{}, false
		}
		return predicate{clause: "t.state_id = ?", args: []any{int64(*f.StateID)}}, true
	},
	idEquals("t.department_id", func(f domain.TaskFilter) *int64 { return f.DepartmentID }),
	timeRange("t.created_at", func(f domain.TaskFilter) domain.TimeRange { return f.Created }),
	timeRange("t.completed_at", func(f domain.TaskFilter) domain.TimeRange { return f.Completed }),
}

func idEquals(column string, field func(domain.TaskFilter) *int64) predicateFunc {
	return func(f domain.TaskFilter) (predicate, bool) {
		id := field(f)
		if id == nil {
			return predicate{}, false
		}
		return predicate{clause: column + " = ?", args: []any{*id}}, true
	}
}

func timeRange(column string, field func(domain.TaskFilter) domain.TimeRange) predicateFunc {
	return func(f domain.TaskFilter) (predicate, bool) {
		r := field(f)
		switch r.Kind() {
		case domain.RangeBetween:
			return predicate{clause: column + " BETWEEN ? AND ?", args: []any{encodeTime(*r.From), encodeTime(*r.To)}}, true
		case domain.RangeFrom:
			return predicate{clause: column + " >= ?", args: []any{encodeTime(*r.From)}}, true
		case domain.RangeTo:
			return predicate{clause: column + " <= ?", args: []any{encodeTime(*r.To)}}, true
		default:
			return predicate{}, false
		}
	}
}

// buildTaskFilterQuery returns the select-all task query narrowed by every
// populated filter field, combined with AND.
func buildTaskFilterQuery(f domain.TaskFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, build := range taskPredicates {
		p, ok := build(f)
		if !ok {
			continue
		}
		clauses = append(clauses, p.clause)
		args = append(args, p.args...)
	}
	query := taskSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	return query + " ORDER BY t.created_at DESC, t.id DESC", args
}

// FilterTasks returns every task matching the filter. An empty filter
// matches all tasks.
func (r Repo) FilterTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	query, args := buildTaskFilterQuery(f)
	return r.listTasks(ctx, query, args...)
}
