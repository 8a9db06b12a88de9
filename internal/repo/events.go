package repo

import (
	"context"
	"database/sql"
	"strings"

	"techfixer/internal/domain"
)

func scanEvent(scan func(...any) error) (domain.Event, error) {
	var (
		evt      domain.Event
		entityID sql.NullInt64
	)
	if err := scan(&evt.ID, &evt.TS, &evt.Type, &evt.EntityKind, &entityID, &evt.ActorID, &evt.Payload); err != nil {
		return evt, err
	}
	if entityID.Valid {
		evt.EntityID = entityID.Int64
	}
	return evt, nil
}

func (r Repo) listEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		evt, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind string, entityID int64) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

// LatestEventsFrom lists events newest first, strictly older than cursor when
// cursor is positive.
func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind string, entityID int64) ([]domain.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if cursor > 0 {
		clauses = append(clauses, "id < ?")
		args = append(args, cursor)
	}
	if evtType != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind = ?")
		args = append(args, entityKind)
	}
	if entityID != 0 {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, entityID)
	}
	query := `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.listEvents(ctx, query, args...)
}

// EventsAfter lists events with id greater than cursor, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64) ([]domain.Event, error) {
	return r.listEvents(ctx, `SELECT id,ts,type,entity_kind,entity_id,actor_id,payload_json FROM events WHERE id > ? ORDER BY id ASC LIMIT ?`, cursor, limit)
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.queryRow(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}
