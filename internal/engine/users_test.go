package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfixer/internal/domain"
	"techfixer/internal/engine"
	"techfixer/internal/repo"
)

func TestRegisterUser(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Password: "pw"})
	var mf engine.MissingFieldError
	require.ErrorAs(t, err, &mf)
	assert.Equal(t, "username", mf.Field)
	_, err = env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "alice"})
	assert.ErrorIs(t, err, engine.ErrMissingRequiredField)

	alice := env.user(t, "alice")
	assert.Equal(t, domain.Ref{ID: domain.RoleStandard, Name: "standard"}, alice.Role)
	assert.NotEqual(t, "pw-alice", alice.PasswordHash)

	_, err = env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "alice", Password: "x"})
	var ae engine.AlreadyExistsError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "alice", ae.Name)

	admin := domain.RoleAdministrator
	root, err := env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "root", Password: "x", RoleID: &admin})
	require.NoError(t, err)
	assert.Equal(t, "administrator", root.Role.Name)

	missing := int64(42)
	_, err = env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "ghost", Password: "x", RoleID: &missing})
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "ghost", Password: "x", DepartmentIDs: []int64{77}})
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.GetUserByName(env.Ctx, "ghost")
	assert.ErrorIs(t, err, repo.ErrNotFound, "failed registration leaves no user")
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	u, err := env.Engine.Authenticate(env.Ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = env.Engine.Authenticate(env.Ctx, "alice", "nope")
	assert.ErrorIs(t, err, engine.ErrInvalidCredentials)
	_, err = env.Engine.Authenticate(env.Ctx, "nobody", "pw")
	assert.ErrorIs(t, err, engine.ErrInvalidCredentials)

	token, _, err := env.Engine.TokenIssuer().Issue(u)
	require.NoError(t, err)
	claims, err := env.Engine.TokenIssuer().Parse(token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	a := env.department(t, "A")
	b := env.department(t, "B")
	alice, err := env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "alice", Password: "pw", DepartmentIDs: []int64{a.ID}})
	require.NoError(t, err)
	env.user(t, "bob")

	_, err = env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: alice.ID, Username: strPtr("bob"), DepartmentIDs: []int64{a.ID}})
	assert.ErrorIs(t, err, engine.ErrAlreadyExists)

	same, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: alice.ID, Username: strPtr("alice"), DepartmentIDs: []int64{a.ID}})
	require.NoError(t, err, "renaming to own name is allowed")
	assert.Equal(t, "alice", same.Username)

	admin := domain.RoleAdministrator
	updated, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{
		ID:            alice.ID,
		Username:      strPtr("alicia"),
		Password:      strPtr("new-pw"),
		RoleID:        &admin,
		DepartmentIDs: []int64{b.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "alicia", updated.Username)
	assert.Equal(t, "administrator", updated.Role.Name)
	assert.Equal(t, []int64{b.ID}, departmentIDs(updated.Departments))
	_, err = env.Engine.Authenticate(env.Ctx, "alicia", "new-pw")
	assert.NoError(t, err)

	cleared, err := env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: alice.ID})
	require.NoError(t, err)
	assert.Empty(t, cleared.Departments, "absent department list clears memberships")

	_, err = env.Engine.UpdateUser(env.Ctx, engine.UserUpdateOptions{ID: 999})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	tech := env.department(t, "Tech")
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol, err := env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: "carol", Password: "pw", DepartmentIDs: []int64{tech.ID}})
	require.NoError(t, err)
	dave := env.user(t, "dave")
	env.task(t, alice.ID, engine.TaskCreateOptions{
		OwnerID:   idPtr(bob.ID),
		Processes: []engine.ProcessSpec{{Description: "swapped fan", AuthorID: dave.ID}},
	})

	// dave neither authors nor owns a task but wrote a process on one.
	for _, id := range []int64{alice.ID, bob.ID, dave.ID} {
		err := env.Engine.DeleteUser(env.Ctx, id, "tester")
		var ce engine.ConflictError
		require.ErrorAs(t, err, &ce)
		assert.ErrorIs(t, err, engine.ErrConflict)
		_, err = env.Engine.GetUser(env.Ctx, id)
		assert.NoError(t, err, "user remains")
	}

	require.NoError(t, env.Engine.DeleteUser(env.Ctx, carol.ID, "tester"))
	_, err = env.Engine.GetUser(env.Ctx, carol.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	d, err := env.Engine.GetDepartment(env.Ctx, tech.ID)
	require.NoError(t, err)
	assert.Empty(t, d.Users)

	assert.ErrorIs(t, env.Engine.DeleteUser(env.Ctx, carol.ID, "tester"), repo.ErrNotFound)
}

func TestCatalog(t *testing.T) {
	env := newTestEnv(t)
	states, err := env.Engine.ListStates(env.Ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateRows, states)

	s, err := env.Engine.GetState(env.Ctx, domain.StateFinished)
	require.NoError(t, err)
	assert.True(t, s.ID.IsTerminal())
	_, err = env.Engine.GetState(env.Ctx, 6)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	roles, err := env.Engine.ListRoles(env.Ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}
