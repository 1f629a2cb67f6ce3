package model

import (
	"fmt"
	"time"
)

// MandateRole is an organizational role a member can hold for a period.
type MandateRole string

const (
	RoleAdmin                   MandateRole = "ADMIN"
	RolePresident               MandateRole = "PRESIDENT"
	RoleVicePresidentCommission MandateRole = "VICE_PRESIDENT_COMMISSIONS"
	RoleSecretary               MandateRole = "SECRETARY"
	RoleTreasurer               MandateRole = "TREASURER"
	RoleMember                  MandateRole = "MEMBER"
)

// AllRoles lists every role in display order.
var AllRoles = []MandateRole{
	RoleAdmin,
	RolePresident,
	RoleVicePresidentCommission,
	RoleSecretary,
	RoleTreasurer,
	RoleMember,
}

var roleLabels = map[MandateRole]string{
	RoleAdmin:                   "Administrator",
	RolePresident:               "President",
	RoleVicePresidentCommission: "Vice President (Commissions)",
	RoleSecretary:               "Secretary",
	RoleTreasurer:               "Treasurer",
	RoleMember:                  "Member",
}

// Valid reports whether r is one of the known roles.
func (r MandateRole) Valid() bool {
	_, ok := roleLabels[r]
	return ok
}

// Assignable reports whether r may be given through the add-mandate flow.
// ADMIN is only granted out of band.
func (r MandateRole) Assignable() bool {
	return r.Valid() && r != RoleAdmin
}

// Label returns the human-readable role name.
func (r MandateRole) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// AssignableRoles returns the roles offered when adding a mandate.
func AssignableRoles() []MandateRole {
	roles := make([]MandateRole, 0, len(AllRoles)-1)
	for _, r := range AllRoles {
		if r.Assignable() {
			roles = append(roles, r)
		}
	}
	return roles
}

// RoleMandate is one assignment of a member to a role for an inclusive date range.
// IsActive is the authoritative status; the dates drive timelines and expiry.
type RoleMandate struct {
	ID        string      `json:"id"`
	MemberID  int         `json:"member_id"`
	Role      MandateRole `json:"role"`
	StartDate Date        `json:"start_date"`
	EndDate   Date        `json:"end_date"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
	UpdatedAt time.Time   `json:"updated_at,omitempty"`
}

// ValidRange reports whether the mandate's dates are set and well ordered.
func (m RoleMandate) ValidRange() bool {
	return !m.StartDate.IsZero() && !m.EndDate.IsZero() && !m.EndDate.Before(m.StartDate)
}

func (m RoleMandate) String() string {
	return fmt.Sprintf("%s %s [%s..%s] active=%t", m.ID, m.Role, m.StartDate, m.EndDate, m.IsActive)
}

// CreateMandateRequest is the payload for POST /members/:id/mandates.
type CreateMandateRequest struct {
	Role      MandateRole `json:"role" binding:"required,assignable_role"`
	StartDate string      `json:"start_date" binding:"required,iso_date"`
	EndDate   string      `json:"end_date" binding:"required,iso_date"`
	IsActive  *bool       `json:"is_active,omitempty"`
}

// UpdateMandateRequest is the partial payload for PUT /members/:id/mandates/:mandate_id.
type UpdateMandateRequest struct {
	Role      *MandateRole `json:"role,omitempty" binding:"omitempty,mandate_role"`
	StartDate *string      `json:"start_date,omitempty" binding:"omitempty,iso_date"`
	EndDate   *string      `json:"end_date,omitempty" binding:"omitempty,iso_date"`
	IsActive  *bool        `json:"is_active,omitempty"`
}
