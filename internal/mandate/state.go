package mandate

import (
	"fmt"
	"strings"
	"time"

	"github.com/civica/membership-backend/internal/model"
)

const tempIDPrefix = "tmp-"

// IsTemporaryID reports whether id was minted locally for an unconfirmed insert.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

func newTempID(now time.Time) string {
	return fmt.Sprintf("%s%d", tempIDPrefix, now.UnixNano())
}

// The helpers below never modify their input slice, so a captured slice is an
// immutable snapshot that can be restored verbatim.

func cloneMandates(ms []model.RoleMandate) []model.RoleMandate {
	if ms == nil {
		return nil
	}
	out := make([]model.RoleMandate, len(ms))
	copy(out, ms)
	return out
}

func indexOf(ms []model.RoleMandate, id string) int {
	for i, m := range ms {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func applyAdd(ms []model.RoleMandate, m model.RoleMandate) []model.RoleMandate {
	out := make([]model.RoleMandate, 0, len(ms)+1)
	out = append(out, ms...)
	return append(out, m)
}

func applyReplace(ms []model.RoleMandate, id string, m model.RoleMandate) ([]model.RoleMandate, error) {
	i := indexOf(ms, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := cloneMandates(ms)
	out[i] = m
	return out, nil
}

func applyDelete(ms []model.RoleMandate, id string) ([]model.RoleMandate, error) {
	i := indexOf(ms, id)
	if i < 0 {
		return nil, ErrNotFound
	}
	out := make([]model.RoleMandate, 0, len(ms)-1)
	out = append(out, ms[:i]...)
	return append(out, ms[i+1:]...), nil
}
