package domain

import "time"

// RangeKind enumerates how a TimeRange constrains a column.
type RangeKind int

const (
	RangeNone RangeKind = iota
	RangeFrom
	RangeTo
	RangeBetween
)

// TimeRange is an optional inclusive range; either bound may be absent.
type TimeRange struct {
	From *time.Time `json:"from,omitempty" format:"date-time"`
	To   *time.Time `json:"to,omitempty" format:"date-time"`
}

func (r TimeRange) Kind() RangeKind {
	switch {
	case r.From != nil && r.To != nil:
		return RangeBetween
	case r.From != nil:
		return RangeFrom
	case r.To != nil:
		return RangeTo
	default:
		return RangeNone
	}
}

// TaskFilter is a sparse conjunctive task query. Every field is optional.
type TaskFilter struct {
	AuthorID     *int64    `json:"author_id,omitempty"`
	OwnerID      *int64    `json:"owner_id,omitempty"`
	StateID      *StateID  `json:"state_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	Created      TimeRange `json:"created"`
	Completed    TimeRange `json:"completed"`
}

func (f TaskFilter) IsEmpty() bool {
	return f.AuthorID == nil && f.OwnerID == nil && f.StateID == nil && f.DepartmentID == nil &&
		f.Created.Kind() == RangeNone && f.Completed.Kind() == RangeNone
}

// PendingBuckets groups an owner's pending tasks by state for presentation.
type PendingBuckets struct {
	Active     []Task `json:"active"`
	InProgress []Task `json:"in_progress"`
	Paused     []Task `json:"paused"`
}

// PartitionPending splits tasks into buckets by state, preserving order.
// Tasks outside the pending states are dropped.
func PartitionPending(tasks []Task) PendingBuckets {
	b := PendingBuckets{Active: []Task{}, InProgress: []Task{}, Paused: []Task{}}
	for _, t := range tasks {
		switch t.State {
		case StateActive:
			b.Active = append(b.Active, t)
		case StateInProgress:
			b.InProgress = append(b.InProgress, t)
		case StatePaused:
			b.Paused = append(b.Paused, t)
		}
	}
	return b
}
