package model

import "time"

// NotificationType classifies a derived mandate notification.
type NotificationType string

const (
	NotificationWarning NotificationType = "WARNING"
	NotificationInfo    NotificationType = "INFO"
)

// Notification is derived from the mandate collection on every change and never persisted.
type Notification struct {
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	MandateID string           `json:"mandate_id"`
}

// NotificationSet is the full notification list of one member at a point in
// time, as fanned out to live subscribers.
type NotificationSet struct {
	MemberID      int            `json:"member_id"`
	Notifications []Notification `json:"notifications"`
	ComputedAt    time.Time      `json:"computed_at"`
}
