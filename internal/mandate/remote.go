// Package mandate holds the client-side role mandate logic: an optimistic
// per-member store over a remote API, plus the pure overlap, expiry and
// filter functions used to derive what is displayed.
package mandate

import (
	"context"

	"github.com/civica/membership-backend/internal/model"
)

// Remote is the REST collaborator the store mirrors.
type Remote interface {
	ListMandates(ctx context.Context, memberID int) ([]model.RoleMandate, error)
	GetMandate(ctx context.Context, memberID int, mandateID string) (model.RoleMandate, error)
	CreateMandate(ctx context.Context, memberID int, draft Draft) (model.RoleMandate, error)
	UpdateMandate(ctx context.Context, memberID int, mandateID string, patch Patch) (model.RoleMandate, error)
	DeleteMandate(ctx context.Context, memberID int, mandateID string) error
}
