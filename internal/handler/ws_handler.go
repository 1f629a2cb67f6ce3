package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/civica/membership-backend/internal/middleware"
	"github.com/civica/membership-backend/internal/model"
	"github.com/civica/membership-backend/internal/response"
	"github.com/civica/membership-backend/internal/service"
	ws "github.com/civica/membership-backend/internal/websocket"
)

const wsSnapshotTimeout = 5 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a member's notification set over a WebSocket.
type WSHandler struct {
	mandateService      *service.MandateService
	notificationService *service.NotificationService
	log                 zerolog.Logger
	upgrader            websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	mandateService *service.MandateService,
	notificationService *service.NotificationService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		mandateService:      mandateService,
		notificationService: notificationService,
		log:                 log.With().Str("component", "ws_handler").Logger(),
		upgrader:            buildUpgrader(allowedOrigins),
	}
}

// NotificationStream godoc
// WS /ws/v1/members/:id/notifications?token=
// Sends the current notification set, then every recompute published for the
// member. Clients may send {"action":"refresh"} or {"action":"ping"}.
func (h *WSHandler) NotificationStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || !claims.HasPermission(model.PermissionNotificationsRead) {
		response.Fail(c, http.StatusForbidden, response.ErrPermissionDenied)
		return
	}

	memberID, ok := paramID(c, "id")
	if !ok {
		return
	}

	initial, err := h.snapshot(c.Request.Context(), memberID)
	if err != nil {
		failFromService(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Int("member_id", memberID).Int("viewer_id", claims.MemberID).Logger()
	wsLog.Info().Msg("Notification stream attached")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := h.notificationService.Subscribe(ctx, memberID)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		wsLog.Error().Err(err).Msg("Subscribe failed")
		_ = ws.WriteError(conn, "notifications unavailable")
		return
	}
	published := pubsub.Channel()

	if err := ws.WriteNotifications(conn, initial); err != nil {
		return
	}

	// Only this goroutine writes; the reader hands actions over.
	actions := make(chan ws.Action, 4)
	go func() {
		defer cancel()
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			select {
			case actions <- msg.Action:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			wsLog.Debug().Msg("Notification stream detached")
			return

		case msg, ok := <-published:
			if !ok {
				return
			}
			var set model.NotificationSet
			if err := json.Unmarshal([]byte(msg.Payload), &set); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping undecodable notification payload")
				continue
			}
			if err := ws.WriteNotifications(conn, set); err != nil {
				return
			}

		case action := <-actions:
			switch action {
			case ws.ActionPing:
				if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
					return
				}
			case ws.ActionRefresh:
				set, err := h.snapshot(ctx, memberID)
				if err != nil {
					wsLog.Error().Err(err).Msg("Refresh failed")
					_ = ws.WriteError(conn, "refresh failed")
					continue
				}
				if err := ws.WriteNotifications(conn, set); err != nil {
					return
				}
			default:
				_ = ws.WriteError(conn, "unknown action: "+string(action))
			}
		}
	}
}

// snapshot computes the member's current notification set.
func (h *WSHandler) snapshot(ctx context.Context, memberID int) (model.NotificationSet, error) {
	ctx, cancel := context.WithTimeout(ctx, wsSnapshotTimeout)
	defer cancel()

	notes, err := h.mandateService.Notifications(ctx, memberID, 0)
	if err != nil {
		return model.NotificationSet{}, err
	}
	return model.NotificationSet{
		MemberID:      memberID,
		Notifications: notes,
		ComputedAt:    time.Now().UTC(),
	}, nil
}
