package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfixer/internal/config"
	"techfixer/internal/db"
	"techfixer/internal/domain"
	"techfixer/internal/engine"
	"techfixer/internal/migrate"
	"techfixer/internal/repo"
)

// stepClock advances one second on every reading so stored timestamps are
// strictly ordered.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, dialect, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err, "open db")
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn, dialect), "migrate")
	ctx := context.Background()
	require.NoError(t, migrate.Seed(ctx, conn, dialect, nil), "seed")
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	eng := engine.New(conn, dialect, cfg)
	clock := &stepClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng.Now = clock.Now
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) user(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := env.Engine.RegisterUser(env.Ctx, engine.UserRegisterOptions{Username: name, Password: "pw-" + name, ActorID: "tester"})
	require.NoError(t, err, "register %s", name)
	return u
}

func (env testEnv) department(t *testing.T, name string) domain.Department {
	t.Helper()
	d, err := env.Engine.CreateDepartment(env.Ctx, name, nil, "tester")
	require.NoError(t, err, "create department %s", name)
	return d
}

func (env testEnv) task(t *testing.T, authorID int64, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	opts.AuthorID = authorID
	opts.ActorID = "tester"
	task, err := env.Engine.CreateTask(env.Ctx, opts)
	require.NoError(t, err, "create task")
	return task
}

func idPtr(id int64) *int64 { return &id }

func statePtr(s domain.StateID) *domain.StateID { return &s }

func strPtr(s string) *string { return &s }

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	task := env.task(t, alice.ID, engine.TaskCreateOptions{Description: "fix printer"})
	assert.Equal(t, domain.StateActive, task.State)
	assert.Equal(t, "Active", task.StateName)
	assert.Nil(t, task.CompletedAt)
	assert.Nil(t, task.Department)
	assert.Nil(t, task.Owner)
	assert.Equal(t, domain.Ref{ID: alice.ID, Name: "alice"}, task.Author)
	assert.False(t, task.CreatedAt.IsZero())
	assert.Empty(t, task.Processes)
}

func TestCreateTaskWithRelationsAndProcesses(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	tech := env.department(t, "Tech")

	task := env.task(t, alice.ID, engine.TaskCreateOptions{
		Description:  "replace disk",
		DepartmentID: idPtr(tech.ID),
		OwnerID:      idPtr(bob.ID),
		StateID:      statePtr(domain.StateInProgress),
		Processes: []engine.ProcessSpec{
			{Description: "diagnosed", AuthorID: bob.ID},
			{Description: "ordered part", AuthorID: alice.ID},
		},
	})
	require.NotNil(t, task.Department)
	assert.Equal(t, "Tech", task.Department.Name)
	require.NotNil(t, task.Owner)
	assert.Equal(t, bob.ID, task.Owner.ID)
	assert.Equal(t, domain.StateInProgress, task.State)
	require.Len(t, task.Processes, 2)
	assert.Equal(t, "ordered part", task.Processes[0].Description, "newest first")
	assert.Equal(t, "diagnosed", task.Processes[1].Description)
	assert.True(t, task.Processes[0].CreatedAt.After(task.CreatedAt))

	d, err := env.Engine.GetDepartment(env.Ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{task.ID}, d.TaskIDs)
}

func TestCreateTaskMissingAuthor(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Description: "orphan"})
	assert.ErrorIs(t, err, engine.ErrMissingAuthor)
	assert.ErrorIs(t, err, engine.ErrMissingRequiredField)
}

func TestCreateTaskUnresolvedReferences(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	cases := []struct {
		name   string
		opts   engine.TaskCreateOptions
		entity string
	}{
		{"author", engine.TaskCreateOptions{AuthorID: 999}, "user"},
		{"department", engine.TaskCreateOptions{AuthorID: alice.ID, DepartmentID: idPtr(999)}, "department"},
		{"owner", engine.TaskCreateOptions{AuthorID: alice.ID, OwnerID: idPtr(999)}, "user"},
		{"state", engine.TaskCreateOptions{AuthorID: alice.ID, StateID: statePtr(9)}, "state"},
		{"process author", engine.TaskCreateOptions{AuthorID: alice.ID, Processes: []engine.ProcessSpec{
			{Description: "ok", AuthorID: alice.ID},
			{Description: "bad", AuthorID: 999},
		}}, "user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateTask(env.Ctx, tc.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, repo.ErrNotFound)
			var nf engine.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tc.entity, nf.Entity)
		})
	}

	tasks, err := env.Engine.ListTasks(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks, "failed creates leave nothing behind")
	procs, err := env.Engine.ListProcesses(env.Ctx)
	require.NoError(t, err)
	assert.Empty(t, procs)
}

func TestCreateTaskFinishedStampsCompletion(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	task := env.task(t, alice.ID, engine.TaskCreateOptions{StateID: statePtr(domain.StateFinished)})
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, task.CreatedAt, *task.CompletedAt)
}

func TestUpdateTaskFinishedIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	task := env.task(t, alice.ID, engine.TaskCreateOptions{Description: "close ticket"})

	require.NoError(t, env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:      task.ID,
		StateID: statePtr(domain.StateFinished),
		ActorID: "tester",
	}))
	finished, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinished, finished.State)
	require.NotNil(t, finished.CompletedAt)
	assert.True(t, finished.CompletedAt.After(finished.CreatedAt))

	updates := []engine.TaskUpdateOptions{
		{ID: task.ID, StateID: statePtr(domain.StateActive)},
		{ID: task.ID, Description: strPtr("reopen")},
		{ID: task.ID},
		{ID: task.ID, StateID: statePtr(99)},
	}
	for _, opts := range updates {
		assert.ErrorIs(t, env.Engine.UpdateTask(env.Ctx, opts), engine.ErrTerminalState)
	}
	_, err = env.Engine.AddProcess(env.Ctx, task.ID, engine.ProcessSpec{Description: "late", AuthorID: alice.ID}, "tester")
	assert.ErrorIs(t, err, engine.ErrTerminalState)

	again, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, finished, again)

	require.NoError(t, env.Engine.DeleteTask(env.Ctx, task.ID, "tester"))
	_, err = env.Engine.GetTask(env.Ctx, task.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUpdateTaskReplaceOrClear(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	tech := env.department(t, "Tech")
	task := env.task(t, alice.ID, engine.TaskCreateOptions{
		Description:  "old",
		DepartmentID: idPtr(tech.ID),
		OwnerID:      idPtr(bob.ID),
	})

	require.NoError(t, env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:          task.ID,
		Description: strPtr("new"),
		Processes:   []engine.ProcessSpec{{Description: "note", AuthorID: bob.ID}},
	}))
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Department, "omitted department clears it")
	assert.Nil(t, got.Owner, "omitted owner clears it")
	assert.Equal(t, "new", got.Description)
	assert.Equal(t, domain.StateActive, got.State)
	assert.Nil(t, got.CompletedAt)
	require.Len(t, got.Processes, 1)
	assert.Equal(t, bob.ID, got.Processes[0].Author.ID)

	err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, OwnerID: idPtr(999)})
	assert.ErrorIs(t, err, repo.ErrNotFound)
	err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: 999})
	var nf engine.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "task", nf.Entity)
}

func TestUpdateTaskRollsBackOnBadProcess(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	task := env.task(t, alice.ID, engine.TaskCreateOptions{Description: "keep"})

	err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:          task.ID,
		Description: strPtr("changed"),
		StateID:     statePtr(domain.StateFinished),
		Processes:   []engine.ProcessSpec{{Description: "bad", AuthorID: 999}},
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)

	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Description)
	assert.Equal(t, domain.StateActive, got.State)
	assert.Nil(t, got.CompletedAt)
}

func TestAddProcess(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	task := env.task(t, alice.ID, engine.TaskCreateOptions{})

	p, err := env.Engine.AddProcess(env.Ctx, task.ID, engine.ProcessSpec{Description: "called customer", AuthorID: alice.ID}, "tester")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, "alice", p.Author.Name)

	got, err := env.Engine.GetProcess(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = env.Engine.AddProcess(env.Ctx, 999, engine.ProcessSpec{AuthorID: alice.ID}, "tester")
	assert.ErrorIs(t, err, repo.ErrNotFound)
	_, err = env.Engine.GetProcess(env.Ctx, 999)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestPendingTasksForOwner(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	active := env.task(t, alice.ID, engine.TaskCreateOptions{OwnerID: idPtr(bob.ID)})
	paused := env.task(t, alice.ID, engine.TaskCreateOptions{OwnerID: idPtr(bob.ID), StateID: statePtr(domain.StatePaused)})
	env.task(t, alice.ID, engine.TaskCreateOptions{OwnerID: idPtr(bob.ID), StateID: statePtr(domain.StateCancelled)})
	env.task(t, alice.ID, engine.TaskCreateOptions{OwnerID: idPtr(bob.ID), StateID: statePtr(domain.StateFinished)})
	env.task(t, alice.ID, engine.TaskCreateOptions{OwnerID: idPtr(alice.ID)})
	progress := env.task(t, alice.ID, engine.TaskCreateOptions{OwnerID: idPtr(bob.ID), StateID: statePtr(domain.StateInProgress)})

	tasks, err := env.Engine.PendingTasksForOwner(env.Ctx, bob.ID)
	require.NoError(t, err)
	var ids []int64
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []int64{progress.ID, paused.ID, active.ID}, ids, "newest first")

	buckets := domain.PartitionPending(tasks)
	require.Len(t, buckets.Active, 1)
	require.Len(t, buckets.InProgress, 1)
	require.Len(t, buckets.Paused, 1)
	assert.Equal(t, active.ID, buckets.Active[0].ID)

	_, err = env.Engine.PendingTasksForOwner(env.Ctx, 999)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestEventsAppendedPerMutation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	task := env.task(t, alice.ID, engine.TaskCreateOptions{Processes: []engine.ProcessSpec{{Description: "x", AuthorID: alice.ID}}})
	require.NoError(t, env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, StateID: statePtr(domain.StatePaused)}))

	evts, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "task", task.ID)
	require.NoError(t, err)
	var types []string
	for _, evt := range evts {
		types = append(types, evt.Type)
	}
	assert.Equal(t, []string{"task.updated", "process.added", "task.created"}, types, "newest first")
}

// Department "Tech", user "alice", task moved through department assignment
// and into Finished.
func TestEndToEndScenario(t *testing.T) {
	env := newTestEnv(t)
	tech := env.department(t, "Tech")
	alice := env.user(t, "alice")
	assert.Empty(t, alice.Departments)

	task := env.task(t, alice.ID, engine.TaskCreateOptions{Description: "onboarding"})
	assert.Equal(t, domain.StateActive, task.State)
	assert.Nil(t, task.Department)

	require.NoError(t, env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, DepartmentID: idPtr(tech.ID)}))
	got, err := env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Department)
	assert.Equal(t, "Tech", got.Department.Name)
	d, err := env.Engine.GetDepartment(env.Ctx, tech.ID)
	require.NoError(t, err)
	assert.Contains(t, d.TaskIDs, task.ID)

	require.NoError(t, env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:           task.ID,
		DepartmentID: idPtr(tech.ID),
		StateID:      statePtr(domain.StateFinished),
	}))
	got, err = env.Engine.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)
	assert.ErrorIs(t, env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, DepartmentID: idPtr(tech.ID)}), engine.ErrTerminalState)
}
