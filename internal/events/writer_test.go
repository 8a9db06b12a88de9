package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfixer/internal/db"
	"techfixer/internal/migrate"
	"techfixer/internal/repo"
)

func TestAppendWritesThroughTransaction(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn, dialect))
	ctx := context.Background()

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	w := Writer{Dialect: dialect, Now: func() time.Time { return at }}

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, TaskCreated, "task", 7, "alice", EventPayload{"state_id": 1}))
	require.NoError(t, tx.Rollback())

	r := repo.New(conn, dialect)
	evts, err := r.LatestEvents(ctx, 10, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, evts, "rolled back append leaves no row")

	tx, err = conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, TaskCreated, "task", 7, "alice", EventPayload{"state_id": 1}))
	require.NoError(t, w.Append(ctx, tx, UserRegistered, "user", 0, "bob", nil))
	require.NoError(t, tx.Commit())

	evts, err = r.LatestEvents(ctx, 10, "", "", 0)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, UserRegistered, evts[0].Type)
	assert.Equal(t, int64(0), evts[0].EntityID)
	assert.Equal(t, "{}", evts[0].Payload)
	assert.Equal(t, TaskCreated, evts[1].Type)
	assert.Equal(t, int64(7), evts[1].EntityID)
	assert.Equal(t, `{"state_id":1}`, evts[1].Payload)
	assert.Equal(t, "2024-03-01T09:30:00Z", evts[1].TS)
}
