package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/civica/membership-backend/internal/mandate"
	"github.com/civica/membership-backend/internal/model"
)

var _ mandate.Remote = (*Client)(nil)

func mandatesPath(memberID int) string {
	return fmt.Sprintf("/members/%d/mandates", memberID)
}

func mandatePath(memberID int, mandateID string) string {
	return mandatesPath(memberID) + "/" + url.PathEscape(mandateID)
}

// ListMandates fetches every mandate of a member.
func (c *Client) ListMandates(ctx context.Context, memberID int) ([]model.RoleMandate, error) {
	var out struct {
		Mandates []model.RoleMandate `json:"mandates"`
	}
	if err := c.do(ctx, http.MethodGet, mandatesPath(memberID), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Mandates, nil
}

// GetMandate fetches one mandate's detail record.
func (c *Client) GetMandate(ctx context.Context, memberID int, mandateID string) (model.RoleMandate, error) {
	var out struct {
		Mandate model.RoleMandate `json:"mandate"`
	}
	err := c.do(ctx, http.MethodGet, mandatePath(memberID, mandateID), nil, http.StatusOK, &out)
	return out.Mandate, err
}

// CreateMandate posts a new mandate and returns the server's record.
func (c *Client) CreateMandate(ctx context.Context, memberID int, draft mandate.Draft) (model.RoleMandate, error) {
	var out struct {
		Mandate model.RoleMandate `json:"mandate"`
	}
	err := c.do(ctx, http.MethodPost, mandatesPath(memberID), draft, http.StatusCreated, &out)
	return out.Mandate, err
}

// UpdateMandate sends a partial update.
func (c *Client) UpdateMandate(ctx context.Context, memberID int, mandateID string, patch mandate.Patch) (model.RoleMandate, error) {
	var out struct {
		Mandate model.RoleMandate `json:"mandate"`
	}
	err := c.do(ctx, http.MethodPut, mandatePath(memberID, mandateID), patch, http.StatusOK, &out)
	return out.Mandate, err
}

// DeleteMandate removes a mandate; the server answers 204.
func (c *Client) DeleteMandate(ctx context.Context, memberID int, mandateID string) error {
	return c.do(ctx, http.MethodDelete, mandatePath(memberID, mandateID), nil, http.StatusNoContent, nil)
}

// MandateNotifications asks the server for its computed notifications.
func (c *Client) MandateNotifications(ctx context.Context, memberID, days int) ([]model.Notification, error) {
	var out struct {
		Notifications []model.Notification `json:"notifications"`
	}
	path := mandatesPath(memberID) + "/notifications"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

// GetMember fetches a member profile.
func (c *Client) GetMember(ctx context.Context, memberID int) (model.Member, error) {
	var out struct {
		Member model.Member `json:"member"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/members/%d", memberID), nil, http.StatusOK, &out)
	return out.Member, err
}
