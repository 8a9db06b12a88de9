// Package repo is the SQL-backed entity store for users, departments, roles,
// states, tasks, processes and the audit event log.
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"techfixer/internal/db"
)

var ErrNotFound = errors.New("not found")

// timeLayout is fixed-width so stored timestamps order lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
	tx      *sql.Tx
}

func New(conn *sql.DB, dialect db.Dialect) Repo {
	return Repo{DB: conn, Dialect: dialect}
}

// WithTx returns a copy of the repo whose reads and writes all go through tx.
func (r Repo) WithTx(tx *sql.Tx) Repo {
	r.tx = tx
	return r
}

func (r Repo) conn() Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.DB
}

func (r Repo) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.conn().ExecContext(ctx, r.Dialect.Rebind(query), args...)
}

func (r Repo) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.conn().QueryContext(ctx, r.Dialect.Rebind(query), args...)
}

func (r Repo) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.conn().QueryRowContext(ctx, r.Dialect.Rebind(query), args...)
}

// insertReturningID runs an INSERT … RETURNING id statement.
func (r Repo) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := r.queryRow(ctx, query+` RETURNING id`, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// mustAffect maps a zero-row write onto ErrNotFound.
func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) int64Column(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []int64{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r Repo) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := r.queryRow(ctx, query, args...).Scan(&n)
	return n, err
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
