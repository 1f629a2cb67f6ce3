package mandate

import (
	"fmt"

	"github.com/civica/membership-backend/internal/model"
)

// Overlaps reports whether two mandates share a role and their closed date
// intervals intersect. It ignores IsActive and is symmetric in its arguments.
func Overlaps(a, b model.RoleMandate) bool {
	if a.Role != b.Role || !datesSet(a) || !datesSet(b) {
		return false
	}
	return a.StartDate.Within(b.StartDate, b.EndDate) ||
		a.EndDate.Within(b.StartDate, b.EndDate) ||
		b.StartDate.Within(a.StartDate, a.EndDate) ||
		b.EndDate.Within(a.StartDate, a.EndDate)
}

// DetectOverlaps emits one WARNING per unordered pair of active mandates of the
// same role whose intervals intersect, keyed on the earlier mandate of the pair.
// A mandate involved in several pairs is reported once per pair.
func DetectOverlaps(mandates []model.RoleMandate) []model.Notification {
	active := make([]model.RoleMandate, 0, len(mandates))
	for _, m := range mandates {
		if m.IsActive {
			active = append(active, m)
		}
	}

	var out []model.Notification
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			m1, m2 := active[i], active[j]
			if !Overlaps(m1, m2) {
				continue
			}
			out = append(out, model.Notification{
				Type: model.NotificationWarning,
				Message: fmt.Sprintf("Overlapping %s mandates: %s to %s overlaps %s to %s",
					m1.Role.Label(), m1.StartDate, m1.EndDate, m2.StartDate, m2.EndDate),
				MandateID: m1.ID,
			})
		}
	}
	return out
}

func datesSet(m model.RoleMandate) bool {
	return !m.StartDate.IsZero() && !m.EndDate.IsZero()
}
