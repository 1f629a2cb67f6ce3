package mandate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/civica/membership-backend/internal/model"
)

// Status selects mandates by their IsActive flag.
type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// ParseStatus accepts "", "all", "active" and "inactive".
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// DateRange bounds the start date of a mandate. It only constrains when both ends are set.
type DateRange struct {
	From model.Date
	To   model.Date
}

// Query is the display filter applied to a mandate collection.
type Query struct {
	Search    string
	Status    Status
	DateRange *DateRange
}

func (q Query) constrained() bool {
	return strings.TrimSpace(q.Search) != "" ||
		(q.Status != "" && q.Status != StatusAll) ||
		q.rangeSet()
}

func (q Query) rangeSet() bool {
	return q.DateRange != nil && !q.DateRange.From.IsZero() && !q.DateRange.To.IsZero()
}

// Predicate composes search, status and date range with AND.
func (q Query) Predicate() func(model.RoleMandate) bool {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	status := q.Status
	rangeSet := q.rangeSet()
	var from, to model.Date
	if rangeSet {
		from, to = q.DateRange.From, q.DateRange.To
	}

	return func(m model.RoleMandate) bool {
		if search != "" && !strings.Contains(strings.ToLower(m.Role.Label()), search) {
			return false
		}
		switch status {
		case StatusActive:
			if !m.IsActive {
				return false
			}
		case StatusInactive:
			if m.IsActive {
				return false
			}
		}
		if rangeSet && !m.StartDate.Within(from, to) {
			return false
		}
		return true
	}
}

// Apply returns the mandates matching q in their original order. An
// unconstrained query returns the input slice itself.
func Apply(mandates []model.RoleMandate, q Query) []model.RoleMandate {
	if !q.constrained() {
		return mandates
	}
	keep := q.Predicate()
	out := make([]model.RoleMandate, 0, len(mandates))
	for _, m := range mandates {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// SortByStartDate returns a copy ordered by start date, then role, then id.
func SortByStartDate(mandates []model.RoleMandate) []model.RoleMandate {
	out := make([]model.RoleMandate, len(mandates))
	copy(out, mandates)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.Role != b.Role {
			return a.Role < b.Role
		}
		return a.ID < b.ID
	})
	return out
}
