package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civica/membership-backend/internal/config"
	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/testutil"
)

const (
	presidentID = "6f1c1a52-4c52-4a7f-9a53-0d5c6d1f0001"
	secretaryID = "6f1c1a52-4c52-4a7f-9a53-0d5c6d1f0002"
	unknownID   = "6f1c1a52-4c52-4a7f-9a53-0d5c6d1f0099"
)

func seededFixture(t *testing.T) *serviceFixture {
	t.Helper()
	return newServiceFixture(t, "2024-12-15",
		mandateFixture(presidentID, 1, model.RolePresident, "2024-01-01", "2024-12-31", true),
		mandateFixture(secretaryID, 1, model.RoleSecretary, "2023-01-01", "2023-12-31", false),
	)
}

func TestMandateListUsesCache(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	ctx := context.Background()

	first, err := f.mandateSvc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, secretaryID, first[0].ID, "ordered by start date")
	assert.True(t, f.mr.Exists(config.CacheKey.MemberMandatesKey(1)))

	second, err := f.mandateSvc.List(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first[1].EndDate.String(), second[1].EndDate.String())
	assert.Equal(t, 1, f.mandates.ListCalls())

	_, err = f.mandateSvc.List(ctx, 42)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestMandateCreatePublishesAndInvalidates(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	ctx := context.Background()

	_, err := f.mandateSvc.List(ctx, 1)
	require.NoError(t, err)

	sub := f.notifications.Subscribe(ctx, 1)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	created, err := f.mandateSvc.Create(ctx, 1, model.CreateMandateRequest{
		Role:      model.RolePresident,
		StartDate: "2024-12-01",
		EndDate:   "2025-11-30",
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive, "is_active defaults to true")
	assert.False(t, f.mr.Exists(config.CacheKey.MemberMandatesKey(1)))

	select {
	case msg := <-sub.Channel():
		var set model.NotificationSet
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &set))
		assert.Equal(t, 1, set.MemberID)
		var warnings int
		for _, n := range set.Notifications {
			if n.Type == model.NotificationWarning {
				warnings++
			}
		}
		assert.Equal(t, 1, warnings, "the new president mandate overlaps the current one")
	case <-time.After(2 * time.Second):
		t.Fatal("no notification published")
	}

	latest, ok, err := f.notifications.Latest(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, latest.Notifications)
}

func TestMandateCreateRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	ctx := context.Background()

	_, err := f.mandateSvc.Create(ctx, 1, model.CreateMandateRequest{
		Role: model.RoleAdmin, StartDate: "2025-01-01", EndDate: "2025-12-31",
	})
	assert.ErrorIs(t, err, ErrRoleNotAssignable)

	_, err = f.mandateSvc.Create(ctx, 1, model.CreateMandateRequest{
		Role: model.RoleTreasurer, StartDate: "2025-12-31", EndDate: "2025-01-01",
	})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = f.mandateSvc.Create(ctx, 9, model.CreateMandateRequest{
		Role: model.RoleTreasurer, StartDate: "2025-01-01", EndDate: "2025-12-31",
	})
	assert.ErrorIs(t, err, ErrMemberNotFound)

	all, err := f.mandateSvc.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMandateUpdate(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	ctx := context.Background()

	end := "2025-06-30"
	updated, err := f.mandateSvc.Update(ctx, 1, presidentID, model.UpdateMandateRequest{EndDate: &end})
	require.NoError(t, err)
	assert.Equal(t, "2025-06-30", updated.EndDate.String())
	assert.Equal(t, model.RolePresident, updated.Role)

	inverted := "2020-01-01"
	_, err = f.mandateSvc.Update(ctx, 1, presidentID, model.UpdateMandateRequest{EndDate: &inverted})
	assert.ErrorIs(t, err, ErrInvalidDateRange)

	_, err = f.mandateSvc.Update(ctx, 1, unknownID, model.UpdateMandateRequest{EndDate: &end})
	assert.ErrorIs(t, err, ErrMandateNotFound)

	_, err = f.mandateSvc.Update(ctx, 1, "not-a-uuid", model.UpdateMandateRequest{EndDate: &end})
	assert.ErrorIs(t, err, ErrMandateNotFound)

	unchanged, err := f.mandateSvc.Update(ctx, 1, secretaryID, model.UpdateMandateRequest{})
	require.NoError(t, err)
	assert.False(t, unchanged.IsActive)
}

func TestMandateDelete(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	ctx := context.Background()

	require.NoError(t, f.mandateSvc.Delete(ctx, 1, secretaryID))
	assert.ErrorIs(t, f.mandateSvc.Delete(ctx, 1, secretaryID), ErrMandateNotFound)

	all, err := f.mandateSvc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, presidentID, all[0].ID)
}

func TestMandateNotificationsAndSearch(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	ctx := context.Background()

	notes, err := f.mandateSvc.Notifications(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, model.NotificationInfo, notes[0].Type)
	assert.Contains(t, notes[0].Message, "expires in 16 days")
	assert.Equal(t, presidentID, notes[0].MandateID)

	notes, err = f.mandateSvc.Notifications(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)

	inactive, err := f.mandateSvc.Search(ctx, 1, mandate.Query{Status: mandate.StatusInactive})
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, secretaryID, inactive[0].ID)

	bySearch, err := f.mandateSvc.Search(ctx, 1, mandate.Query{Search: "presi"})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, presidentID, bySearch[0].ID)
}

func TestListActiveByMember(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t, "2024-12-15",
		mandateFixture(presidentID, 1, model.RolePresident, "2024-01-01", "2024-12-31", true),
		mandateFixture(secretaryID, 2, model.RoleSecretary, "2024-01-01", "2024-12-31", true),
		mandateFixture(unknownID, 2, model.RoleTreasurer, "2024-01-01", "2024-12-31", false),
	)

	grouped, err := f.mandateSvc.ListActiveByMember(context.Background())
	require.NoError(t, err)
	assert.Len(t, grouped, 2)
	assert.Len(t, grouped[2], 1)
}

// stallingMandateRepo holds its first ListByMember call after the rows were
// read, until release is closed.
type stallingMandateRepo struct {
	*testutil.MandateRepo
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newStallingMandateRepo(inner *testutil.MandateRepo) *stallingMandateRepo {
	return &stallingMandateRepo{MandateRepo: inner, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (r *stallingMandateRepo) ListByMember(ctx context.Context, memberID int) ([]model.RoleMandate, error) {
	list, err := r.MandateRepo.ListByMember(ctx, memberID)
	stall := false
	r.once.Do(func() { stall = true })
	if stall {
		close(r.loaded)
		<-r.release
	}
	if err == nil {
		err = ctx.Err()
	}
	return list, err
}

func TestMandateListSkipsCacheWhenWriteOverlapsRead(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	repo := newStallingMandateRepo(f.mandates)
	svc := NewMandateService(repo, f.members, f.notifications, f.rdb, testConfig(), zerolog.Nop())
	ctx := context.Background()

	slow := make(chan []model.RoleMandate, 1)
	go func() {
		list, _ := svc.List(ctx, 1)
		slow <- list
	}()
	<-repo.loaded

	require.NoError(t, svc.Delete(ctx, 1, secretaryID))
	close(repo.release)
	assert.Len(t, <-slow, 2, "the slow read started before the delete")
	assert.False(t, f.mr.Exists(config.CacheKey.MemberMandatesKey(1)))

	after, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, presidentID, after[0].ID)
}

func TestMandateListFillOutlivesCallerCancel(t *testing.T) {
	t.Parallel()
	f := seededFixture(t)
	repo := newStallingMandateRepo(f.mandates)
	svc := NewMandateService(repo, f.members, f.notifications, f.rdb, testConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		list []model.RoleMandate
		err  error
	}
	first := make(chan result, 1)
	go func() {
		list, err := svc.List(ctx, 1)
		first <- result{list, err}
	}()
	<-repo.loaded

	cancel()
	close(repo.release)
	res := <-first
	require.NoError(t, res.err)
	assert.Len(t, res.list, 2)
	assert.True(t, f.mr.Exists(config.CacheKey.MemberMandatesKey(1)), "shared fill completes for every waiter")
}
