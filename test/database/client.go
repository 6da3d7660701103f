// Package database provides the shared Postgres test harness: a
// testcontainer (or an external CI database) with migrations applied.
package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	scoutdb "github.com/eventscout/eventscout/pkg/database"
)

// NewTestClient creates a migrated test database client.
// In CI (when CI_DATABASE_URL is set): connects to the external
// PostgreSQL service container. Otherwise it requires
// EVENTSCOUT_DB_TESTS=1 and spins up a testcontainer; without the gate
// the test is skipped so plain `go test ./...` stays docker-free.
func NewTestClient(t *testing.T) *scoutdb.Client {
	t.Helper()
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		if os.Getenv("EVENTSCOUT_DB_TESTS") == "" {
			t.Skip("set EVENTSCOUT_DB_TESTS=1 (or CI_DATABASE_URL) to run database tests")
		}

		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("eventscout_test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, scoutdb.Migrate(db, "eventscout_test"))

	client := scoutdb.NewClientFromDB(db)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
