package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civica/membership-backend/internal/model"
)

const mandateColumns = `id::text, member_id, role, start_date, end_date, is_active, created_at, updated_at`

// MandateRepository handles role mandate data access.
type MandateRepository struct {
	pool *pgxpool.Pool
}

// NewMandateRepository creates a new MandateRepository.
func NewMandateRepository(pool *pgxpool.Pool) *MandateRepository {
	return &MandateRepository{pool: pool}
}

func scanMandate(row interface{ Scan(...any) error }) (*model.RoleMandate, error) {
	var (
		m          model.RoleMandate
		start, end time.Time
	)
	if err := row.Scan(&m.ID, &m.MemberID, &m.Role, &start, &end, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.StartDate = model.DateOf(start)
	m.EndDate = model.DateOf(end)
	return &m, nil
}

func collectMandates(rows pgx.Rows) ([]model.RoleMandate, error) {
	defer rows.Close()

	mandates := []model.RoleMandate{}
	for rows.Next() {
		m, err := scanMandate(rows)
		if err != nil {
			return nil, err
		}
		mandates = append(mandates, *m)
	}
	return mandates, rows.Err()
}

// ListByMember retrieves every mandate of a member ordered by start date.
func (r *MandateRepository) ListByMember(ctx context.Context, memberID int) ([]model.RoleMandate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mandateColumns+` FROM mandates WHERE member_id = $1 ORDER BY start_date, role, id`,
		memberID)
	if err != nil {
		return nil, err
	}
	return collectMandates(rows)
}

// ListActive retrieves every active mandate across members, grouped by member.
func (r *MandateRepository) ListActive(ctx context.Context) ([]model.RoleMandate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mandateColumns+` FROM mandates WHERE is_active ORDER BY member_id, start_date, id`)
	if err != nil {
		return nil, err
	}
	return collectMandates(rows)
}

// GetByID retrieves a mandate scoped to its member. A mandate belonging to
// another member is reported as pgx.ErrNoRows.
func (r *MandateRepository) GetByID(ctx context.Context, memberID int, id string) (*model.RoleMandate, error) {
	return scanMandate(r.pool.QueryRow(ctx,
		`SELECT `+mandateColumns+` FROM mandates WHERE id = $1::uuid AND member_id = $2`,
		id, memberID))
}

// Create inserts a new mandate. The caller assigns m.ID.
func (r *MandateRepository) Create(ctx context.Context, m *model.RoleMandate) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO mandates (id, member_id, role, start_date, end_date, is_active)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		m.ID, m.MemberID, m.Role, m.StartDate.Time(), m.EndDate.Time(), m.IsActive,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// Update overwrites the mutable fields of a mandate.
func (r *MandateRepository) Update(ctx context.Context, m *model.RoleMandate) error {
	return r.pool.QueryRow(ctx,
		`UPDATE mandates SET role = $1, start_date = $2, end_date = $3, is_active = $4, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $5::uuid AND member_id = $6
		 RETURNING created_at, updated_at`,
		m.Role, m.StartDate.Time(), m.EndDate.Time(), m.IsActive, m.ID, m.MemberID,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// Delete removes a mandate; it reports pgx.ErrNoRows when nothing matched.
func (r *MandateRepository) Delete(ctx context.Context, memberID int, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM mandates WHERE id = $1::uuid AND member_id = $2`, id, memberID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
