package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civica/membership-backend/internal/model"
	ws "github.com/civica/membership-backend/internal/websocket"
)

// streamURL derives the notification socket from the REST base, mapping
// http(s)://host/api/v1 to ws(s)://host/ws/v1/members/<id>/notifications.
func (c *Client) streamURL(memberID int) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/api/v1")
	u.Path += fmt.Sprintf("/ws/v1/members/%d/notifications", memberID)
	u.RawQuery = url.Values{"token": {c.bearer()}}.Encode()
	return u.String(), nil
}

// WatchNotifications attaches to the member's live notification stream and
// calls fn with every set the server pushes, starting with the current one.
// It returns nil when ctx is cancelled.
func (c *Client) WatchNotifications(ctx context.Context, memberID int, fn func(model.NotificationSet)) error {
	target, err := c.streamURL(memberID)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusSwitchingProtocols {
				return &APIError{StatusCode: resp.StatusCode, Message: "notification stream refused"}
			}
		}
		return fmt.Errorf("dial notification stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		var evt struct {
			Event ws.Event `json:"event"`
			Error string   `json:"error"`
			model.NotificationSet
		}
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("read notification stream: %w", err)
		}

		switch evt.Event {
		case ws.EventNotifications:
			fn(evt.NotificationSet)
		case ws.EventError:
			c.log.Warn().Str("error", evt.Error).Int("member_id", memberID).Msg("Notification stream error")
		}
	}
}
