package mandate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/civica/membership-backend/internal/model"
)

var errBackend = errors.New("backend returned 500")

// fakeRemote is an in-memory Remote with per-operation failure switches.
type fakeRemote struct {
	mu       sync.Mutex
	mandates map[int][]model.RoleMandate
	nextID   int

	failCreate bool
	failUpdate bool
	failDelete bool
	failGet    bool

	listGate  chan struct{}
	listCalls int
	getCalls  int
}

func newFakeRemote(memberID int, seed ...model.RoleMandate) *fakeRemote {
	return &fakeRemote{mandates: map[int][]model.RoleMandate{memberID: seed}}
}

func (f *fakeRemote) ListMandates(ctx context.Context, memberID int) ([]model.RoleMandate, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	out := cloneMandates(f.mandates[memberID])
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (f *fakeRemote) GetMandate(ctx context.Context, memberID int, mandateID string) (model.RoleMandate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.failGet {
		return model.RoleMandate{}, errBackend
	}
	for _, m := range f.mandates[memberID] {
		if m.ID == mandateID {
			return m, nil
		}
	}
	return model.RoleMandate{}, ErrNotFound
}

func (f *fakeRemote) CreateMandate(ctx context.Context, memberID int, d Draft) (model.RoleMandate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return model.RoleMandate{}, errBackend
	}
	f.nextID++
	m := model.RoleMandate{
		ID:        fmt.Sprintf("srv-%d", f.nextID),
		MemberID:  memberID,
		Role:      d.Role,
		StartDate: d.StartDate,
		EndDate:   d.EndDate,
		IsActive:  d.IsActive,
	}
	f.mandates[memberID] = append(f.mandates[memberID], m)
	return m, nil
}

func (f *fakeRemote) UpdateMandate(ctx context.Context, memberID int, mandateID string, p Patch) (model.RoleMandate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return model.RoleMandate{}, errBackend
	}
	list := f.mandates[memberID]
	for i, m := range list {
		if m.ID == mandateID {
			list[i] = p.Merge(m)
			return list[i], nil
		}
	}
	return model.RoleMandate{}, ErrNotFound
}

func (f *fakeRemote) DeleteMandate(ctx context.Context, memberID int, mandateID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errBackend
	}
	list := f.mandates[memberID]
	for i, m := range list {
		if m.ID == mandateID {
			f.mandates[memberID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
