package mandate

import (
	"github.com/civica/membership-backend/internal/model"
)

// Draft is the input of an add-mandate action.
type Draft struct {
	Role      model.MandateRole `json:"role"`
	StartDate model.Date        `json:"start_date"`
	EndDate   model.Date        `json:"end_date"`
	IsActive  bool              `json:"is_active"`
}

// Validate checks the draft before it reaches the store.
func (d Draft) Validate() error {
	fields := map[string]string{}
	switch {
	case d.Role == "":
		fields["role"] = "role is required"
	case !d.Role.Assignable():
		fields["role"] = "role cannot be assigned"
	}
	if d.StartDate.IsZero() {
		fields["start_date"] = "start_date is required"
	}
	if d.EndDate.IsZero() {
		fields["end_date"] = "end_date is required"
	}
	if !d.StartDate.IsZero() && !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate) {
		fields["end_date"] = "end_date must not be before start_date"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Role      *model.MandateRole `json:"role,omitempty"`
	StartDate *model.Date        `json:"start_date,omitempty"`
	EndDate   *model.Date        `json:"end_date,omitempty"`
	IsActive  *bool              `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Role == nil && p.StartDate == nil && p.EndDate == nil && p.IsActive == nil
}

// Merge returns m with the patch applied.
func (p Patch) Merge(m model.RoleMandate) model.RoleMandate {
	if p.Role != nil {
		m.Role = *p.Role
	}
	if p.StartDate != nil {
		m.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		m.EndDate = *p.EndDate
	}
	if p.IsActive != nil {
		m.IsActive = *p.IsActive
	}
	return m
}

func validateMerged(m model.RoleMandate) error {
	fields := map[string]string{}
	if !m.Role.Valid() {
		fields["role"] = "unknown role"
	}
	if !m.ValidRange() {
		fields["end_date"] = "end_date must not be before start_date"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
