package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civica/membership-backend/internal/model"
)

var ErrDuplicateEmail = errors.New("member with this email already exists")

const memberColumns = `id, first_name, last_name, email, role, password_hash, created_at, updated_at`

// MemberRepository handles member data access.
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func scanMember(row interface{ Scan(...any) error }) (*model.Member, error) {
	m := &model.Member{}
	if err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Role, &m.PasswordHash, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// GetByID retrieves a member by ID.
func (r *MemberRepository) GetByID(ctx context.Context, id int) (*model.Member, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
}

// GetByEmail retrieves a member by their unique email.
func (r *MemberRepository) GetByEmail(ctx context.Context, email string) (*model.Member, error) {
	return scanMember(r.pool.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE lower(email) = lower($1)`, email))
}

// List retrieves all members ordered by name.
func (r *MemberRepository) List(ctx context.Context) ([]model.Member, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []model.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// Create inserts a new member.
func (r *MemberRepository) Create(ctx context.Context, m *model.Member) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO members (first_name, last_name, email, role, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		m.FirstName, m.LastName, m.Email, m.Role, m.PasswordHash,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return mapMemberError(err)
}

// Update modifies a member's profile and account role (excluding password).
func (r *MemberRepository) Update(ctx context.Context, m *model.Member) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE members SET first_name = $1, last_name = $2, email = $3, role = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5
		 RETURNING created_at, updated_at`,
		m.FirstName, m.LastName, m.Email, m.Role, m.ID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	return mapMemberError(err)
}

// UpdatePassword replaces a member's password hash.
func (r *MemberRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE members SET password_hash = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		passwordHash, id,
	)
	return err
}

func mapMemberError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateEmail
	}
	return err
}
