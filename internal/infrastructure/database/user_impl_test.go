package database

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"swapbot/internal/domain/repositories"
)

// These tests need a real Postgres; set TEST_DATABASE_DSN to run them.
// The clamp and upsert primitives live in SQL, so the in-memory fakes
// in the services package cannot cover them.
func testDB(t *testing.T) *PostgresDB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)

	pg := &PostgresDB{db}
	require.NoError(t, pg.RunMigrations("../../../migrations"))

	t.Cleanup(func() {
		pg.Close()
	})
	return pg
}

func createTestUser(t *testing.T, db *PostgresDB, repo repositories.UserRepository, username string, freeRequests int) int64 {
	t.Helper()

	id := time.Now().UnixNano()
	_, err := repo.EnsureUser(context.Background(), id, username, freeRequests)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.ExecContext(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func TestDecrementClampedPastZero(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	id := createTestUser(t, db, repo, "clamp", 10)

	consumed, remaining, err := repo.DecrementClamped(ctx, id, repositories.ResourceRequests, 25)
	require.NoError(t, err)
	require.Equal(t, 10, consumed)
	require.Equal(t, 0, remaining)
}

func TestDecrementClampedUnderConcurrency(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	id := createTestUser(t, db, repo, "race", 10)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumed, _, err := repo.DecrementClamped(ctx, id, repositories.ResourceRequests, 3)
			require.NoError(t, err)
			mu.Lock()
			total += consumed
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Four concurrent decrements of 3 against a balance of 10: the
	// consumed amounts must add up to the starting balance exactly.
	require.Equal(t, 10, total)

	user, err := repo.GetUser(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 0, user.RequestsLeft)
}

func TestEnsureUserKeepsUsernameOnEmptyUpsert(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	id := createTestUser(t, db, repo, "alice", 10)

	user, err := repo.EnsureUser(ctx, id, "", 10)
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	user, err = repo.EnsureUser(ctx, id, "bob", 10)
	require.NoError(t, err)
	require.Equal(t, "bob", user.Username)
}
