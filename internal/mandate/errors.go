package mandate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a mutation names a mandate the store does not hold.
var ErrNotFound = errors.New("mandate not found")

// ValidationError carries per-field messages for a rejected draft or patch.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid mandate: " + strings.Join(parts, "; ")
}

// MutationError reports a remote failure after the local change was rolled back.
type MutationError struct {
	Op        string
	MemberID  int
	MandateID string
	Err       error
}

func (e *MutationError) Error() string {
	if e.MandateID != "" {
		return fmt.Sprintf("%s mandate %s for member %d: %v", e.Op, e.MandateID, e.MemberID, e.Err)
	}
	return fmt.Sprintf("%s mandate for member %d: %v", e.Op, e.MemberID, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// UserMessage returns text suitable for a toast. Errors that carry their own
// user-facing message (such as API errors) take precedence.
func (e *MutationError) UserMessage() string {
	var um interface{ UserMessage() string }
	if errors.As(e.Err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return fmt.Sprintf("Could not %s the mandate. Your change was reverted.", e.Op)
}
