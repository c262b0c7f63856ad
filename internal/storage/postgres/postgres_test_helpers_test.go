package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// appTables lists every table the migrations create, children first.
var appTables = []string{"change_history", "user_permissions", "equipment", "staff_members", "events", "users"}

// testDB is one migrated database shared by the whole package run. It is a
// container unless EVENTOPS_TEST_DATABASE_URL points at a disposable database.
var testDB struct {
	once      sync.Once
	err       error
	url       string
	pool      *pgxpool.Pool
	container testcontainers.Container
}

func TestMain(m *testing.M) {
	code := m.Run()
	if testDB.pool != nil {
		testDB.pool.Close()
	}
	if testDB.container != nil {
		_ = testcontainers.TerminateContainer(testDB.container)
	}
	os.Exit(code)
}

// setupPostgres returns a pool on an emptied schema. Tests using it are
// skipped in -short mode since they need Docker or a database URL.
func setupPostgres(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}

	testDB.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		testDB.err = startTestDB(ctx)
	})
	require.NoError(t, testDB.err)

	truncateAll(t, testDB.pool)
	return testDB.pool, testDB.url
}

func startTestDB(ctx context.Context) error {
	url := os.Getenv("EVENTOPS_TEST_DATABASE_URL")
	if url == "" {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("eventops"),
			tcpostgres.WithUsername("eventops"),
			tcpostgres.WithPassword("eventops_dev"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			return fmt.Errorf("start postgres container: %w", err)
		}
		testDB.container = container

		if url, err = container.ConnectionString(ctx, "sslmode=disable"); err != nil {
			return err
		}
	}
	testDB.url = url

	// the server may accept connections a moment before migrations can run
	var err error
	for deadline := time.Now().Add(10 * time.Second); ; time.Sleep(500 * time.Millisecond) {
		if err = MigrateUp(url, ""); err == nil || time.Now().After(deadline) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("migrate test database: %w", err)
	}

	testDB.pool, err = pgxpool.New(ctx, url)
	return err
}

func truncateAll(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(appTables, ", ")+" CASCADE")
	require.NoError(t, err)
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	pool, _ := setupPostgres(t)
	repo, err := NewRepository(pool, 5*time.Second)
	require.NoError(t, err)
	return repo
}
