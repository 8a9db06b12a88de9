package domain

import "time"

// Ref is a compact projection of a related entity.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Seeded roles. RoleStandard is assigned when registration names no role.
const (
	RoleAdministrator int64 = 1
	RoleStandard      int64 = 2
)

type User struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	PasswordHash    string  `json:"-"`
	Role            Ref     `json:"role"`
	Departments     []Ref   `json:"departments"`
	AuthoredTaskIDs []int64 `json:"authored_task_ids,omitempty"`
	OwnedTaskIDs    []int64 `json:"owned_task_ids,omitempty"`
}

type Department struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Users   []Ref   `json:"users"`
	TaskIDs []int64 `json:"task_ids,omitempty"`
}

// Membership is one User<->Department edge.
type Membership struct {
	UserID       int64     `json:"user_id"`
	DepartmentID int64     `json:"department_id"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
}

type Task struct {
	ID          int64      `json:"id"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	Description string     `json:"description"`
	Department  *Ref       `json:"department,omitempty"`
	Author      Ref        `json:"author"`
	Owner       *Ref       `json:"owner,omitempty"`
	State       StateID    `json:"state_id"`
	StateName   string     `json:"state_name"`
	Processes   []Process  `json:"processes"`
}

// Process is an immutable activity note attached to a task.
type Process struct {
	ID          int64     `json:"id"`
	TaskID      int64     `json:"task_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at" format:"date-time"`
	Author      Ref       `json:"author"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
