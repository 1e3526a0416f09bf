// Package testdb connects integration tests to a real PostgreSQL database.
//
// Tests skip unless DATABASE_URL (or RECALL_TEST_DB_URL) is set. The schema is
// migrated once per test binary. Tests either isolate themselves with a fresh
// user id or run inside WithTx, which always rolls back.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/platform/postgres"
	"github.com/phrazzld/recallcode-api/internal/redact"
	"github.com/stretchr/testify/require"
)

// Timeout bounds connection checks and each WithTx body.
const Timeout = 10 * time.Second

var (
	migrateOnce sync.Once
	migrateErr  error
)

// DatabaseURL returns DATABASE_URL, falling back to RECALL_TEST_DB_URL.
func DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return os.Getenv("RECALL_TEST_DB_URL")
}

// Available reports whether integration tests can run.
func Available() bool {
	return DatabaseURL() != ""
}

// Open returns a migrated connection pool closed at test cleanup, or skips t
// when no database is configured.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	url := DatabaseURL()
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, url, postgres.PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, Timeout)
	require.NoError(t, err, "connecting to %s", redact.String(url))
	t.Cleanup(func() { _ = db.Close() })

	migrateOnce.Do(func() {
		log, _ := logger.NewTestLogger()
		migrateErr = postgres.Migrate(ctx, db, postgres.MigrateUp, log)
	})
	require.NoError(t, migrateErr, "migrating test database")

	return db
}

// WithTx runs fn inside a transaction that is rolled back afterwards, so
// nothing fn writes outlives the test.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err, "beginning test transaction")
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			t.Errorf("rolling back test transaction: %v", err)
		}
	}()

	fn(t, tx)
}
