package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/civica/membership-backend/internal/model"
)

const (
	writeWait = 10 * time.Second
	// PongWait bounds how long a connection may stay silent.
	PongWait = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, errMsg string) error {
	return WriteTyped(conn, ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// WriteNotifications sends a full notification set.
func WriteNotifications(conn *websocket.Conn, set model.NotificationSet) error {
	if set.Notifications == nil {
		set.Notifications = []model.Notification{}
	}
	return WriteTyped(conn, NotificationsEvent{Event: EventNotifications, NotificationSet: set})
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetReadDeadline(time.Now().Add(PongWait))
	return conn.ReadJSON(v)
}
