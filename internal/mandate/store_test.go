package mandate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civica/membership-backend/internal/model"
)

const testMember = 7

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2024, 12, 15, 9, 0, 0, 0, time.UTC) }
}

func seeded() []model.RoleMandate {
	return []model.RoleMandate{
		mandateOf("m1", model.RolePresident, "2024-01-01", "2024-12-31", true),
		mandateOf("m2", model.RoleSecretary, "2023-01-01", "2023-12-31", false),
	}
}

func newTestStore(t *testing.T, remote *fakeRemote) *Store {
	t.Helper()
	return NewStore(remote, testMember, WithClock(fixedClock()), WithPrefetch(false, 0))
}

func serialize(t *testing.T, ms []model.RoleMandate) []byte {
	t.Helper()
	b, err := json.Marshal(ms)
	require.NoError(t, err)
	return b
}

func TestStoreListCachesUntilInvalidated(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()

	got, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.listCalls)

	store.Invalidate()
	_, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.listCalls)
}

func TestStoreAddConfirmsServerRecord(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()
	_, err := store.List(ctx)
	require.NoError(t, err)

	created, err := store.Add(ctx, Draft{
		Role:      model.RoleTreasurer,
		StartDate: model.MustParseDate("2025-01-01"),
		EndDate:   model.MustParseDate("2025-12-31"),
		IsActive:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)

	snap := store.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "srv-1", snap[2].ID)
	for _, m := range snap {
		assert.False(t, IsTemporaryID(m.ID))
	}

	_, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, remote.listCalls, "a confirmed mutation invalidates the cache")
}

func TestStoreAddRollsBackOnServerError(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	remote.failCreate = true
	store := newTestStore(t, remote)
	ctx := context.Background()
	_, err := store.List(ctx)
	require.NoError(t, err)

	before := serialize(t, store.Snapshot())

	var seen [][]model.Notification
	var mu sync.Mutex
	store.Subscribe(func(n []model.Notification) {
		mu.Lock()
		seen = append(seen, n)
		mu.Unlock()
	})

	_, err = store.Add(ctx, Draft{
		Role:      model.RoleTreasurer,
		StartDate: model.MustParseDate("2025-01-01"),
		EndDate:   model.MustParseDate("2025-12-31"),
		IsActive:  true,
	})
	require.Error(t, err)

	var mutErr *MutationError
	require.True(t, errors.As(err, &mutErr))
	assert.Equal(t, "add", mutErr.Op)
	assert.ErrorIs(t, err, errBackend)
	assert.NotEmpty(t, mutErr.UserMessage())

	assert.Equal(t, before, serialize(t, store.Snapshot()))
	assert.Len(t, store.Snapshot(), 2)

	store.dispatchWG.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 2, "listeners see the optimistic apply and the rollback")
}

func TestStoreUpdateAndDeleteRollBack(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	remote.failUpdate = true
	remote.failDelete = true
	store := newTestStore(t, remote)
	ctx := context.Background()
	_, err := store.List(ctx)
	require.NoError(t, err)

	before := serialize(t, store.Snapshot())

	inactive := false
	_, err = store.Update(ctx, "m1", Patch{IsActive: &inactive})
	require.Error(t, err)
	assert.Equal(t, before, serialize(t, store.Snapshot()))

	err = store.Delete(ctx, "m1")
	require.Error(t, err)
	assert.Equal(t, before, serialize(t, store.Snapshot()))
}

func TestStoreUpdateMergesPatch(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()

	end := model.MustParseDate("2025-06-30")
	updated, err := store.Update(ctx, "m1", Patch{EndDate: &end})
	require.NoError(t, err)
	assert.True(t, updated.EndDate.Equal(end))
	assert.Equal(t, model.RolePresident, updated.Role)

	snap := store.Snapshot()
	assert.True(t, snap[0].EndDate.Equal(end))
}

func TestStoreUpdateRejectsInvertedRange(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()

	end := model.MustParseDate("2023-01-01")
	_, err := store.Update(ctx, "m1", Patch{EndDate: &end})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "end_date")

	_, err = store.Update(ctx, "missing", Patch{EndDate: &end})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDeleteRemovesRecord(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()

	require.NoError(t, store.Delete(ctx, "m2"))
	snap := store.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "m1", snap[0].ID)
}

func TestStoreAddValidatesDraft(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember)
	store := newTestStore(t, remote)

	_, err := store.Add(context.Background(), Draft{Role: model.RoleAdmin})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "role")
	assert.Contains(t, verr.Fields, "start_date")
	assert.Contains(t, verr.Fields, "end_date")

	_, err = store.Add(context.Background(), Draft{
		Role:      model.RoleMember,
		StartDate: model.MustParseDate("2025-01-01"),
		EndDate:   model.MustParseDate("2024-01-01"),
	})
	require.True(t, errors.As(err, &verr))
	assert.Empty(t, store.Snapshot())
}

func TestStoreStaleListDoesNotClobberMutation(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()
	_, err := store.List(ctx)
	require.NoError(t, err)

	store.Invalidate()
	gate := make(chan struct{})
	remote.mu.Lock()
	remote.listGate = gate
	remote.mu.Unlock()

	type listResult struct {
		ms  []model.RoleMandate
		err error
	}
	done := make(chan listResult, 1)
	go func() {
		ms, err := store.List(ctx)
		done <- listResult{ms, err}
	}()

	require.Eventually(t, func() bool {
		remote.mu.Lock()
		defer remote.mu.Unlock()
		return remote.listCalls == 2
	}, time.Second, 5*time.Millisecond)

	remote.mu.Lock()
	remote.listGate = nil
	remote.mu.Unlock()

	_, err = store.Add(ctx, Draft{
		Role:      model.RoleMember,
		StartDate: model.MustParseDate("2025-01-01"),
		EndDate:   model.MustParseDate("2025-12-31"),
		IsActive:  true,
	})
	require.NoError(t, err)
	close(gate)

	res := <-done
	require.NoError(t, res.err)
	assert.Len(t, store.Snapshot(), 3, "the superseded read must not drop the new mandate")
}

func TestStorePrefetchIgnoresFailures(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	remote.failGet = true
	store := NewStore(remote, testMember, WithClock(fixedClock()), WithPrefetch(true, 2))

	_, err := store.List(context.Background())
	require.NoError(t, err)
	store.prefetchWG.Wait()

	_, ok := store.Detail("m1")
	assert.False(t, ok)

	remote.mu.Lock()
	remote.failGet = false
	remote.mu.Unlock()
	store.Invalidate()
	_, err = store.List(context.Background())
	require.NoError(t, err)
	store.prefetchWG.Wait()

	d, ok := store.Detail("m1")
	require.True(t, ok)
	assert.Equal(t, model.RolePresident, d.Role)
}

func TestStoreNotificationsAndPersistence(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	_, err := store.List(context.Background())
	require.NoError(t, err)

	notes := store.Notifications(store.Today())
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "expires in 16 days")

	var buf bytes.Buffer
	require.NoError(t, store.Save(&buf))

	restored := newTestStore(t, newFakeRemote(testMember))
	require.NoError(t, restored.Load(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, serialize(t, store.Snapshot()), serialize(t, restored.Snapshot()))

	other := NewStore(remote, 99)
	assert.Error(t, other.Load(bytes.NewReader(buf.Bytes())))
}

func TestStoreListenerMayMutate(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(testMember, seeded()...)
	store := newTestStore(t, remote)
	ctx := context.Background()
	_, err := store.List(ctx)
	require.NoError(t, err)

	var once sync.Once
	nested := make(chan error, 1)
	store.Subscribe(func([]model.Notification) {
		once.Do(func() {
			nested <- store.Delete(ctx, "m2")
		})
	})

	done := make(chan error, 1)
	go func() {
		_, err := store.Add(ctx, Draft{
			Role:      model.RoleTreasurer,
			StartDate: model.MustParseDate("2025-01-01"),
			EndDate:   model.MustParseDate("2025-12-31"),
			IsActive:  true,
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("add blocked on its own listener")
	}
	select {
	case err := <-nested:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener mutation never completed")
	}

	store.dispatchWG.Wait()
	ids := make([]string, 0, 2)
	for _, m := range store.Snapshot() {
		ids = append(ids, m.ID)
	}
	assert.NotContains(t, ids, "m2")
	assert.Len(t, ids, 2)
}
