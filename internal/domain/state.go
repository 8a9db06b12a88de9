package domain

import "fmt"

// StateID is the closed set of task lifecycle states. The numeric values are
// the seeded row ids of the states table and are relied upon by callers.
type StateID int64

const (
	StateActive     StateID = 1
	StateInProgress StateID = 2
	StatePaused     StateID = 3
	StateFinished   StateID = 4
	StateCancelled  StateID = 5
)

// StateRows is the translation table between the enumeration and the
// generic states(id,name) rows written by the seed step.
var StateRows = []State{
	{ID: StateActive, Name: "Active"},
	{ID: StateInProgress, Name: "InProgress"},
	{ID: StatePaused, Name: "Paused"},
	{ID: StateFinished, Name: "Finished"},
	{ID: StateCancelled, Name: "Cancelled"},
}

// PendingStates are the states listed by the owner's pending view.
var PendingStates = []StateID{StateActive, StateInProgress, StatePaused}

type State struct {
	ID   StateID `json:"id"`
	Name string  `json:"name"`
}

func (s StateID) Valid() bool {
	return s >= StateActive && s <= StateCancelled
}

// IsTerminal reports whether a task in this state rejects updates.
func (s StateID) IsTerminal() bool {
	return s == StateFinished
}

func (s StateID) IsPending() bool {
	for _, p := range PendingStates {
		if p == s {
			return true
		}
	}
	return false
}

func (s StateID) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", int64(s))
	}
	return StateRows[s-1].Name
}

// StateFromRow maps a stored row onto the enumeration. Rows outside the
// seeded set are rejected.
func StateFromRow(id int64, name string) (State, error) {
	s := StateID(id)
	if !s.Valid() {
		return State{}, fmt.Errorf("unknown state id %d (%s)", id, name)
	}
	return State{ID: s, Name: name}, nil
}
