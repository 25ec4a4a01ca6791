// Package testdb provides helpers for tests that need the job event database.
//
// Tests use the database named by GRAPHGEN_TEST_DATABASE_URL. When it is not
// set and GRAPHGEN_TEST_DOCKER=1, a disposable PostgreSQL container is started
// once per test binary. Otherwise database tests are skipped. Each test works
// inside its own transaction, which is rolled back when the test finishes:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.Open(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        store := postgres.NewJobEventStore(tx, logger)
//	        // ...
//	    })
//	}
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/graphgen-api/internal/platform/postgres"
	"github.com/phrazzld/graphgen-api/internal/redact"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// URLEnv names the environment variable holding the test database URL.
	URLEnv = "GRAPHGEN_TEST_DATABASE_URL"
	// DockerEnv enables the container fallback when set to "1".
	DockerEnv = "GRAPHGEN_TEST_DOCKER"

	// Timeout bounds connection setup and migrations.
	Timeout = 10 * time.Second

	postgresImage = "postgres:16-alpine"
)

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// URL returns the URL of a usable test database, starting a container if
// configured to. It skips t when no database is available.
func URL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv(URLEnv); url != "" {
		return url
	}
	if os.Getenv(DockerEnv) != "1" {
		t.Skipf("%s not set - skipping database test", URLEnv)
	}

	containerOnce.Do(func() {
		containerURL, containerErr = startContainer(context.Background())
	})
	require.NoError(t, containerErr, "failed to start postgres container")
	return containerURL
}

// startContainer runs PostgreSQL in Docker. The container lives until the
// test binary exits and is then removed by the testcontainers reaper.
func startContainer(ctx context.Context) (string, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "graphgen",
				"POSTGRES_PASSWORD": "graphgen",
				"POSTGRES_DB":       "graphgen_test",
			},
			// postgres restarts once after initdb
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("container host: %w", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return "", fmt.Errorf("container port: %w", err)
	}

	return fmt.Sprintf("postgres://graphgen:graphgen@%s:%s/graphgen_test?sslmode=disable", host, port.Port()), nil
}

// Open connects to the test database and applies all migrations. The
// connection is closed when t finishes.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	url := URL(t)

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := postgres.Open(ctx, url, logger)
	require.NoError(t, err, "failed to connect to %s", redact.String(url))
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})

	require.NoError(t, postgres.Migrate(ctx, db, "up", logger), "failed to migrate test database")
	return db
}

// WithTx runs fn inside a transaction that is always rolled back, so tests
// never see each other's rows.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("warning: failed to roll back transaction: %v", err)
		}
	}()

	fn(t, tx)
}
