// Package events appends audit rows describing every committed mutation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"techfixer/internal/db"
	"techfixer/internal/repo"
)

// Event types written by the engine.
const (
	TaskCreated       = "task.created"
	TaskUpdated       = "task.updated"
	TaskDeleted       = "task.deleted"
	ProcessAdded      = "process.added"
	DepartmentCreated = "department.created"
	DepartmentUpdated = "department.updated"
	DepartmentDeleted = "department.deleted"
	UserRegistered    = "user.registered"
	UserUpdated       = "user.updated"
	UserDeleted       = "user.deleted"
	MembershipAdded   = "membership.added"
	MembershipRemoved = "membership.removed"
)

type Writer struct {
	Dialect db.Dialect
	Now     func() time.Time
}

type EventPayload map[string]any

// Append writes one event through q, normally the operation's transaction.
func (w Writer) Append(ctx context.Context, q repo.Querier, evtType, entityKind string, entityID int64, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = q.ExecContext(ctx, w.Dialect.Rebind(`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`),
		ts, evtType, entityKind, nullableID(entityID), actorID, string(data))
	return err
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
