package engine

import (
	"context"
	"database/sql"

	"techfixer/internal/events"
	"techfixer/internal/repo"
)

// SetMemberships replaces the user's department set with deptIDs. An empty
// or nil list removes every membership the user has.
func (e Engine) SetMemberships(ctx context.Context, userID int64, deptIDs []int64, actorID string) (err error) {
	defer func() { observe("membership.set", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.setMemberships(ctx, tx, r, userID, deptIDs, actorID); err != nil {
		return err
	}
	return tx.Commit()
}

// TouchMembershipsIfProvided replaces the department's member set with
// userIDs. An empty or nil list leaves membership untouched.
func (e Engine) TouchMembershipsIfProvided(ctx context.Context, deptID int64, userIDs []int64, actorID string) (err error) {
	defer func() { observe("membership.touch", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.touchMemberships(ctx, tx, r, deptID, userIDs, actorID); err != nil {
		return err
	}
	return tx.Commit()
}

// AddDepartment adds the user to the department. It is a no-op when the
// membership already exists.
func (e Engine) AddDepartment(ctx context.Context, userID, deptID int64, actorID string) (err error) {
	defer func() { observe("membership.add", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.addDepartment(ctx, tx, r, userID, deptID, actorID); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveDepartment removes the user from the department, matching by id. It
// is a no-op when no such membership exists.
func (e Engine) RemoveDepartment(ctx context.Context, userID, deptID int64, actorID string) (err error) {
	defer func() { observe("membership.remove", err) }()
	tx, r, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.removeDepartment(ctx, tx, r, userID, deptID, actorID); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) setMemberships(ctx context.Context, tx *sql.Tx, r repo.Repo, userID int64, deptIDs []int64, actorID string) error {
	if _, err := r.UserRef(ctx, userID); err != nil {
		return notFound("user", userID, err)
	}
	want := uniqueIDs(deptIDs)
	for _, id := range want {
		if _, err := r.DepartmentRef(ctx, id); err != nil {
			return notFound("department", id, err)
		}
	}
	current, err := r.Memberships(ctx, userID)
	if err != nil {
		return err
	}
	have := make([]int64, 0, len(current))
	for _, m := range current {
		have = append(have, m.DepartmentID)
	}
	added, removed := diffIDs(have, want)
	for _, id := range removed {
		if err := e.removeDepartment(ctx, tx, r, userID, id, actorID); err != nil {
			return err
		}
	}
	for _, id := range added {
		if err := e.addDepartment(ctx, tx, r, userID, id, actorID); err != nil {
			return err
		}
	}
	return nil
}

func (e Engine) touchMemberships(ctx context.Context, tx *sql.Tx, r repo.Repo, deptID int64, userIDs []int64, actorID string) error {
	if len(userIDs) == 0 {
		return nil
	}
	d, err := r.GetDepartment(ctx, deptID)
	if err != nil {
		return notFound("department", deptID, err)
	}
	want := uniqueIDs(userIDs)
	for _, id := range want {
		if _, err := r.UserRef(ctx, id); err != nil {
			return notFound("user", id, err)
		}
	}
	have := make([]int64, 0, len(d.Users))
	for _, u := range d.Users {
		have = append(have, u.ID)
	}
	added, removed := diffIDs(have, want)
	for _, id := range removed {
		if err := e.removeDepartment(ctx, tx, r, id, deptID, actorID); err != nil {
			return err
		}
	}
	for _, id := range added {
		if err := e.addDepartment(ctx, tx, r, id, deptID, actorID); err != nil {
			return err
		}
	}
	return nil
}

// addDepartment re-resolves both sides before writing the edge.
func (e Engine) addDepartment(ctx context.Context, tx *sql.Tx, r repo.Repo, userID, deptID int64, actorID string) error {
	if _, err := r.UserRef(ctx, userID); err != nil {
		return notFound("user", userID, err)
	}
	if _, err := r.DepartmentRef(ctx, deptID); err != nil {
		return notFound("department", deptID, err)
	}
	added, err := r.AddMembership(ctx, userID, deptID, e.now())
	if err != nil || !added {
		return err
	}
	return e.emit(ctx, tx, events.MembershipAdded, "user", userID, actorID, events.EventPayload{"department_id": deptID})
}

func (e Engine) removeDepartment(ctx context.Context, tx *sql.Tx, r repo.Repo, userID, deptID int64, actorID string) error {
	if _, err := r.UserRef(ctx, userID); err != nil {
		return notFound("user", userID, err)
	}
	if _, err := r.DepartmentRef(ctx, deptID); err != nil {
		return notFound("department", deptID, err)
	}
	removed, err := r.RemoveMembership(ctx, userID, deptID)
	if err != nil || !removed {
		return err
	}
	return e.emit(ctx, tx, events.MembershipRemoved, "user", userID, actorID, events.EventPayload{"department_id": deptID})
}

// diffIDs returns the ids in want missing from have, and the ids in have
// missing from want. Order follows the input slices.
func diffIDs(have, want []int64) (added, removed []int64) {
	inHave := make(map[int64]bool, len(have))
	for _, id := range have {
		inHave[id] = true
	}
	inWant := make(map[int64]bool, len(want))
	for _, id := range want {
		inWant[id] = true
		if !inHave[id] {
			added = append(added, id)
		}
	}
	for _, id := range have {
		if !inWant[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
