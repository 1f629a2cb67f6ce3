package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/repository"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrEmailTaken     = errors.New("email already in use")
)

// MemberService handles member business logic.
type MemberService struct {
	memberRepo  MemberRepository
	authService *AuthService
}

// NewMemberService creates a new MemberService.
func NewMemberService(memberRepo MemberRepository, authService *AuthService) *MemberService {
	return &MemberService{memberRepo: memberRepo, authService: authService}
}

// GetByID retrieves a member by ID.
func (s *MemberService) GetByID(ctx context.Context, id int) (*model.Member, error) {
	m, err := s.memberRepo.GetByID(ctx, id)
	return m, mapMemberErr(err)
}

// GetByEmail retrieves a member by email.
func (s *MemberService) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	m, err := s.memberRepo.GetByEmail(ctx, email)
	return m, mapMemberErr(err)
}

// List retrieves all members.
func (s *MemberService) List(ctx context.Context) ([]model.Member, error) {
	return s.memberRepo.List(ctx)
}

// Create registers a member. An empty password leaves the account unable to log in.
func (s *MemberService) Create(ctx context.Context, req model.CreateMemberRequest) (*model.Member, error) {
	m := &model.Member{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      req.Role,
	}
	if req.Password != "" {
		hash, err := s.authService.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		m.PasswordHash = hash
	}
	if err := s.memberRepo.Create(ctx, m); err != nil {
		return nil, mapMemberErr(err)
	}
	return m, nil
}

// Update modifies a member's profile.
func (s *MemberService) Update(ctx context.Context, id int, req model.UpdateMemberRequest) (*model.Member, error) {
	m, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.FirstName = req.FirstName
	m.LastName = req.LastName
	m.Email = req.Email
	m.Role = req.Role
	if err := s.memberRepo.Update(ctx, m); err != nil {
		return nil, mapMemberErr(err)
	}
	return m, nil
}

// SetPassword hashes and stores a new password for a member.
func (s *MemberService) SetPassword(ctx context.Context, id int, password string) error {
	hash, err := s.authService.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return mapMemberErr(s.memberRepo.UpdatePassword(ctx, id, hash))
}

// Authenticate resolves a member from credentials.
func (s *MemberService) Authenticate(ctx context.Context, email, password string) (*model.Member, error) {
	m, err := s.memberRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.authService.CheckPassword(m.PasswordHash, password); err != nil {
		return nil, err
	}
	return m, nil
}

func mapMemberErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrMemberNotFound
	case errors.Is(err, repository.ErrDuplicateEmail):
		return ErrEmailTaken
	default:
		return err
	}
}
