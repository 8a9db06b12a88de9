package server

import (
	"encoding/json"
	"time"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
)

// Request payloads

type LoginRequest struct {
	Username string `json:"username" minLength:"1"`
	Password string `json:"password" minLength:"1"`
}

type RegisterRequest struct {
	Username      string  `json:"username,omitempty"`
	Password      string  `json:"password,omitempty"`
	RoleID        *int64  `json:"role_id,omitempty"`
	DepartmentIDs []int64 `json:"department_ids,omitempty"`
}

type ProcessRequest struct {
	Description string `json:"description"`
	AuthorID    *int64 `json:"author_id,omitempty" doc:"Defaults to the authenticated user"`
}

type CreateTaskRequest struct {
	Description  string           `json:"description,omitempty"`
	DepartmentID *int64           `json:"department_id,omitempty"`
	AuthorID     *int64           `json:"author_id,omitempty" doc:"Defaults to the authenticated user"`
	OwnerID      *int64           `json:"owner_id,omitempty"`
	StateID      *int64           `json:"state_id,omitempty" minimum:"1"`
	Processes    []ProcessRequest `json:"processes,omitempty"`
}

// UpdateTaskRequest replaces department and owner: omitting either clears it.
type UpdateTaskRequest struct {
	Description  *string          `json:"description,omitempty"`
	DepartmentID *int64           `json:"department_id,omitempty"`
	OwnerID      *int64           `json:"owner_id,omitempty"`
	StateID      *int64           `json:"state_id,omitempty" minimum:"1"`
	Processes    []ProcessRequest `json:"processes,omitempty"`
}

type TimeRangeRequest struct {
	From *time.Time `json:"from,omitempty" format:"date-time"`
	To   *time.Time `json:"to,omitempty" format:"date-time"`
}

type FilterTasksRequest struct {
	AuthorID     *int64           `json:"author_id,omitempty"`
	OwnerID      *int64           `json:"owner_id,omitempty"`
	StateID      *int64           `json:"state_id,omitempty"`
	DepartmentID *int64           `json:"department_id,omitempty"`
	Created      TimeRangeRequest `json:"created,omitempty"`
	Completed    TimeRangeRequest `json:"completed,omitempty"`
}

type CreateDepartmentRequest struct {
	Name    string  `json:"name,omitempty"`
	UserIDs []int64 `json:"user_ids,omitempty"`
}

// UpdateDepartmentRequest leaves members untouched when user_ids is empty.
type UpdateDepartmentRequest struct {
	Name    *string `json:"name,omitempty"`
	UserIDs []int64 `json:"user_ids,omitempty"`
}

// UpdateUserRequest replaces memberships: omitting department_ids clears them.
type UpdateUserRequest struct {
	Username      *string `json:"username,omitempty"`
	Password      *string `json:"password,omitempty"`
	RoleID        *int64  `json:"role_id,omitempty"`
	DepartmentIDs []int64 `json:"department_ids,omitempty"`
}

// Response payloads

type TokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at" format:"date-time"`
	User      domain.User `json:"user"`
}

type PendingTasksResponse struct {
	UserID int64                 `json:"user_id"`
	Tasks  domain.PendingBuckets `json:"tasks"`
}

type MeResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (r FilterTasksRequest) toFilter() domain.TaskFilter {
	f := domain.TaskFilter{
		AuthorID:     r.AuthorID,
		OwnerID:      r.OwnerID,
		DepartmentID: r.DepartmentID,
		Created:      domain.TimeRange{From: r.Created.From, To: r.Created.To},
		Completed:    domain.TimeRange{From: r.Completed.From, To: r.Completed.To},
	}
	if r.StateID != nil {
		s := domain.StateID(*r.StateID)
		f.StateID = &s
	}
	return f
}

func stateIDPtr(id *int64) *domain.StateID {
	if id == nil {
		return nil
	}
	s := domain.StateID(*id)
	return &s
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func processSpecs(reqs []ProcessRequest, defaultAuthor int64) []engine.ProcessSpec {
	specs := make([]engine.ProcessSpec, 0, len(reqs))
	for _, p := range reqs {
		author := defaultAuthor
		if p.AuthorID != nil {
			author = *p.AuthorID
		}
		specs = append(specs, engine.ProcessSpec{Description: p.Description, AuthorID: author})
	}
	return specs
}
