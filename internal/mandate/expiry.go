package mandate

import (
	"fmt"

	"github.com/civica/membership-backend/internal/model"
)

// DefaultWarningDays is how far ahead an upcoming end date is reported.
const DefaultWarningDays = 30

// ScanExpiry reports active mandates that already ended (WARNING) or end within
// daysBeforeWarning days of today, inclusive (INFO). Inactive mandates and
// mandates without an end date are skipped.
func ScanExpiry(mandates []model.RoleMandate, today model.Date, daysBeforeWarning int) []model.Notification {
	if daysBeforeWarning < 0 {
		daysBeforeWarning = 0
	}
	horizon := today.AddDays(daysBeforeWarning)

	var out []model.Notification
	for _, m := range mandates {
		if !m.IsActive || m.EndDate.IsZero() {
			continue
		}
		switch {
		case m.EndDate.Before(today):
			out = append(out, model.Notification{
				Type:      model.NotificationWarning,
				Message:   fmt.Sprintf("%s mandate is expired (ended %s)", m.Role.Label(), m.EndDate),
				MandateID: m.ID,
			})
		case !m.EndDate.After(horizon):
			out = append(out, model.Notification{
				Type:      model.NotificationInfo,
				Message:   expiresMessage(m.Role, today.DaysUntil(m.EndDate)),
				MandateID: m.ID,
			})
		}
	}
	return out
}

func expiresMessage(role model.MandateRole, days int) string {
	switch days {
	case 0:
		return fmt.Sprintf("%s mandate expires today", role.Label())
	case 1:
		return fmt.Sprintf("%s mandate expires in 1 day", role.Label())
	default:
		return fmt.Sprintf("%s mandate expires in %d days", role.Label(), days)
	}
}

// Notifications runs overlap detection and the expiry scan over the full collection.
func Notifications(mandates []model.RoleMandate, today model.Date, daysBeforeWarning int) []model.Notification {
	out := DetectOverlaps(mandates)
	return append(out, ScanExpiry(mandates, today, daysBeforeWarning)...)
}
