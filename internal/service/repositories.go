package service

import (
	"context"

	"github.com/civica/membership-backend/internal/model"
)

// MemberRepository is the persistence contract the member and mandate services
// rely on. *repository.MemberRepository satisfies it; missing rows surface as
// pgx.ErrNoRows.
type MemberRepository interface {
	GetByID(ctx context.Context, id int) (*model.Member, error)
	GetByEmail(ctx context.Context, email string) (*model.Member, error)
	List(ctx context.Context) ([]model.Member, error)
	Create(ctx context.Context, m *model.Member) error
	Update(ctx context.Context, m *model.Member) error
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

// MandateRepository is satisfied by *repository.MandateRepository.
type MandateRepository interface {
	ListByMember(ctx context.Context, memberID int) ([]model.RoleMandate, error)
	ListActive(ctx context.Context) ([]model.RoleMandate, error)
	GetByID(ctx context.Context, memberID int, id string) (*model.RoleMandate, error)
	Create(ctx context.Context, m *model.RoleMandate) error
	Update(ctx context.Context, m *model.RoleMandate) error
	Delete(ctx context.Context, memberID int, id string) error
}
