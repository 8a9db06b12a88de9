package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techfixer/internal/db"
)

func TestMigrateAndSeedAreIdempotent(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, Migrate(conn, dialect))
		require.NoError(t, Seed(ctx, conn, dialect, []string{"Tecnico", "Desarrollo"}))
	}

	var version int
	require.NoError(t, conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)

	rows, err := conn.Query(`SELECT id, name FROM states ORDER BY id`)
	require.NoError(t, err)
	var names []string
	for rows.Next() {
		var id int64
		var name string
		require.NoError(t, rows.Scan(&id, &name))
		assert.Equal(t, int64(len(names)+1), id)
		names = append(names, name)
	}
	require.NoError(t, rows.Close())
	assert.Equal(t, []string{"Active", "InProgress", "Paused", "Finished", "Cancelled"}, names)

	var roles, depts int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM roles`).Scan(&roles))
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM departments`).Scan(&depts))
	assert.Equal(t, 2, roles)
	assert.Equal(t, 2, depts)
}

func TestLoadMigrationsUnknownDialect(t *testing.T) {
	_, err := loadMigrations(db.Dialect("oracle"))
	assert.Error(t, err)
}
