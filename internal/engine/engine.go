// Package engine holds the business rules for tasks, departments, users and
// their memberships. Every exported mutation runs as one transaction.
package engine

import (
	"context"
	"database/sql"
	"time"

	"techfixer/internal/config"
	"techfixer/internal/db"
	"techfixer/internal/events"
	"techfixer/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) Engine {
	return Engine{
		DB:     conn,
		Repo:   repo.New(conn, dialect),
		Events: events.Writer{Dialect: dialect},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// begin opens the unit of work and returns a repo bound to it.
func (e Engine) begin(ctx context.Context) (*sql.Tx, repo.Repo, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, repo.Repo{}, err
	}
	return tx, e.Repo.WithTx(tx), nil
}

func (e Engine) emit(ctx context.Context, tx *sql.Tx, evtType, entityKind string, entityID int64, actorID string, payload events.EventPayload) error {
	w := e.Events
	w.Now = e.now
	return w.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload)
}
