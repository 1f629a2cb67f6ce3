// Package testutil holds in-memory stand-ins for the Postgres repositories
// and a Redis helper, shared by service, handler and command tests.
package testutil

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/repository"
)

// MemberRepo is an in-memory member store. Missing rows report pgx.ErrNoRows.
type MemberRepo struct {
	mu      sync.Mutex
	members map[int]*model.Member
	nextID  int
}

// NewMemberRepo seeds the store; ids continue after the highest seeded one.
func NewMemberRepo(members ...model.Member) *MemberRepo {
	r := &MemberRepo{members: map[int]*model.Member{}, nextID: 1}
	for i := range members {
		m := members[i]
		r.members[m.ID] = &m
		if m.ID >= r.nextID {
			r.nextID = m.ID + 1
		}
	}
	return r
}

func (r *MemberRepo) GetByID(_ context.Context, id int) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *m
	return &cp, nil
}

func (r *MemberRepo) GetByEmail(_ context.Context, email string) (*model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if strings.EqualFold(m.Email, email) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MemberRepo) List(_ context.Context) ([]model.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Member, 0, len(r.members))
	for id := 1; id < r.nextID; id++ {
		if m, ok := r.members[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *MemberRepo) Create(_ context.Context, m *model.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.members {
		if strings.EqualFold(existing.Email, m.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	m.ID = r.nextID
	r.nextID++
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	r.members[m.ID] = &cp
	return nil
}

func (r *MemberRepo) Update(_ context.Context, m *model.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *m
	r.members[m.ID] = &cp
	return nil
}

func (r *MemberRepo) UpdatePassword(_ context.Context, id int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return pgx.ErrNoRows
	}
	m.PasswordHash = hash
	return nil
}

// MandateRepo is an in-memory mandate store.
type MandateRepo struct {
	mu         sync.Mutex
	mandates   []model.RoleMandate
	listCalls  int
	failWrites error
}

// FailWrites makes Create, Update and Delete return err until reset with nil.
func (r *MandateRepo) FailWrites(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWrites = err
}

// ListCalls returns how many times ListByMember ran.
func (r *MandateRepo) ListCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}

// NewMandateRepo seeds the store with ms.
func NewMandateRepo(ms ...model.RoleMandate) *MandateRepo {
	return &MandateRepo{mandates: append([]model.RoleMandate(nil), ms...)}
}

func (r *MandateRepo) ListByMember(_ context.Context, memberID int) ([]model.RoleMandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	out := []model.RoleMandate{}
	for _, m := range r.mandates {
		if m.MemberID == memberID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MandateRepo) ListActive(_ context.Context) ([]model.RoleMandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.RoleMandate{}
	for _, m := range r.mandates {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MandateRepo) GetByID(_ context.Context, memberID int, id string) (*model.RoleMandate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mandates {
		if m.ID == id && m.MemberID == memberID {
			cp := m
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *MandateRepo) Create(_ context.Context, m *model.RoleMandate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	r.mandates = append(r.mandates, *m)
	return nil
}

func (r *MandateRepo) Update(_ context.Context, m *model.RoleMandate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	for i := range r.mandates {
		if r.mandates[i].ID == m.ID && r.mandates[i].MemberID == m.MemberID {
			m.UpdatedAt = time.Now()
			r.mandates[i] = *m
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *MandateRepo) Delete(_ context.Context, memberID int, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWrites != nil {
		return r.failWrites
	}
	for i := range r.mandates {
		if r.mandates[i].ID == id && r.mandates[i].MemberID == memberID {
			r.mandates = append(r.mandates[:i], r.mandates[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}


// NewRedis starts a miniredis server bound to t and returns a client for it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// Mandate builds a mandate from ISO date literals.
func Mandate(id string, memberID int, role model.MandateRole, start, end string, active bool) model.RoleMandate {
	return model.RoleMandate{
		ID:        id,
		MemberID:  memberID,
		Role:      role,
		StartDate: model.MustParseDate(start),
		EndDate:   model.MustParseDate(end),
		IsActive:  active,
	}
}
