package websocket

import "github.com/civica/membership-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing    Action = "ping"
	ActionRefresh Action = "refresh"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError         Event = "error"
	EventNotifications Event = "notifications"
	EventPong          Event = "pong"
)

// NotificationsEvent carries a member's complete, recomputed notification set.
// Each event replaces the previous one on the client.
type NotificationsEvent struct {
	Event Event `json:"event"`
	model.NotificationSet
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
