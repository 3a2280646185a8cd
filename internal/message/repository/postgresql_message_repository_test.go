package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/leasemq/internal/message/domain"
	"github.com/allisson/leasemq/internal/testutil"
)

func TestNewPostgreSQLMessageRepository(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	assert.NotNil(t, repo)
	assert.IsType(t, &PostgreSQLMessageRepository{}, repo)
}

func TestPostgreSQLMessageRepository_Create(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()

	msg, err := repo.Create(ctx, json.RawMessage(`["ok", {"n": 1}]`))
	require.NoError(t, err)

	assert.Positive(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.JSONEq(t, `["ok", {"n": 1}]`, string(msg.Payload))
	assert.Nil(t, msg.LeaseExpiresAt)

	retrieved, err := repo.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, retrieved.ID)
	assert.WithinDuration(t, msg.CreatedAt, retrieved.CreatedAt, time.Millisecond)
}

func TestPostgreSQLMessageRepository_Acquire(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()

	t.Run("acquires unclaimed message", func(t *testing.T) {
		id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)

		msg, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg.LeaseExpiresAt)
		assert.WithinDuration(t, time.Now().Add(30*time.Second), *msg.LeaseExpiresAt, 5*time.Second)
	})

	t.Run("rejects leased message", func(t *testing.T) {
		id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
		_, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)

		msg, err := repo.Acquire(ctx, id, 30*time.Second)
		assert.ErrorIs(t, err, domain.ErrNotAvailable)
		assert.Nil(t, msg)
	})

	t.Run("re-acquires expired lease", func(t *testing.T) {
		id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
		_, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)
		testutil.ExpireLease(t, db, "postgres", id)

		msg, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageStateLeased, msg.State(time.Now()))
	})

	t.Run("missing message is not available", func(t *testing.T) {
		_, err := repo.Acquire(ctx, 999999, 30*time.Second)
		assert.ErrorIs(t, err, domain.ErrNotAvailable)
	})
}

func TestPostgreSQLMessageRepository_Acquire_Concurrent(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()
	id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Acquire(ctx, id, 30*time.Second); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestPostgreSQLMessageRepository_DeleteLeased(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()

	t.Run("deletes with live lease and matching token", func(t *testing.T) {
		id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
		leased, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)

		msg, err := repo.DeleteLeased(ctx, id, *leased.LeaseExpiresAt)
		require.NoError(t, err)
		assert.Equal(t, id, msg.ID)

		_, err = repo.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("conflict with stale token", func(t *testing.T) {
		id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
		leased, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)

		_, err = repo.DeleteLeased(ctx, id, leased.LeaseExpiresAt.Add(-time.Second))
		assert.ErrorIs(t, err, domain.ErrLeaseConflict)
	})

	t.Run("conflict with expired lease", func(t *testing.T) {
		id := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
		_, err := repo.Acquire(ctx, id, 30*time.Second)
		require.NoError(t, err)
		testutil.ExpireLease(t, db, "postgres", id)

		expired, err := repo.Get(ctx, id)
		require.NoError(t, err)

		_, err = repo.DeleteLeased(ctx, id, *expired.LeaseExpiresAt)
		assert.ErrorIs(t, err, domain.ErrLeaseConflict)
	})
}

func TestPostgreSQLMessageRepository_DeleteExpired(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()

	unclaimed := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	live := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	expired := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)

	_, err := repo.Acquire(ctx, live, 30*time.Second)
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, expired, 30*time.Second)
	require.NoError(t, err)
	testutil.ExpireLease(t, db, "postgres", expired)

	ids, err := repo.ListExpiredIDs(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{expired}, ids)

	_, err = repo.DeleteExpired(ctx, unclaimed)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	_, err = repo.DeleteExpired(ctx, live)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)

	msg, err := repo.DeleteExpired(ctx, expired)
	require.NoError(t, err)
	assert.Equal(t, expired, msg.ID)
	require.NotNil(t, msg.LeaseExpiresAt)
}

func TestPostgreSQLMessageRepository_ListIDs(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()

	fresh := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	stale := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	leased := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	testutil.BackdateMessage(t, db, "postgres", stale, time.Hour)
	testutil.BackdateMessage(t, db, "postgres", leased, time.Hour)
	_, err := repo.Acquire(ctx, leased, 30*time.Second)
	require.NoError(t, err)

	staleIDs, err := repo.ListStaleIDs(ctx, time.Minute, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{stale}, staleIDs)

	staleIDs, err = repo.ListStaleIDs(ctx, time.Minute, stale, 10)
	require.NoError(t, err)
	assert.Empty(t, staleIDs)

	available, err := repo.ListAvailableIDs(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{fresh, stale}, available)

	available, err = repo.ListAvailableIDs(ctx, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{fresh}, available)

	available, err = repo.ListAvailableIDs(ctx, fresh, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{stale}, available)
}

func TestPostgreSQLMessageRepository_ListAndCount(t *testing.T) {
	db := testutil.SetupPostgresDB(t)
	defer testutil.TeardownDB(t, db)
	defer testutil.CleanupPostgresDB(t, db)

	repo := NewPostgreSQLMessageRepository(db)
	ctx := context.Background()

	first := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	second := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	third := testutil.CreateTestMessage(t, db, "postgres", `["ok"]`)
	_, err := repo.Acquire(ctx, second, 30*time.Second)
	require.NoError(t, err)
	_, err = repo.Acquire(ctx, third, 30*time.Second)
	require.NoError(t, err)
	testutil.ExpireLease(t, db, "postgres", third)

	messages, err := repo.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, first, messages[0].ID)
	assert.Equal(t, second, messages[1].ID)

	counts, err := repo.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.MessageStateUnclaimed])
	assert.Equal(t, int64(1), counts[domain.MessageStateLeased])
	assert.Equal(t, int64(1), counts[domain.MessageStateExpired])

	deleted, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}
