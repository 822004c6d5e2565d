package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"upnext-service/internal/auth"
	"upnext-service/internal/middleware"
	"upnext-service/internal/models"
	"upnext-service/internal/observability"
	"upnext-service/internal/repositories"
)

// InboxSocketHandler feeds each user's private chat-list channel. The list is
// pushed on connect and again whenever the notifier signals a change; every
// push is recomputed from persisted state.
type InboxSocketHandler struct {
	hub           *Hub
	conversations repositories.ConversationRepository
	tokens        *auth.TokenService
}

// NewInboxSocketHandler constructs an InboxSocketHandler.
func NewInboxSocketHandler(hub *Hub, conversations repositories.ConversationRepository, tokens *auth.TokenService) *InboxSocketHandler {
	return &InboxSocketHandler{hub: hub, conversations: conversations, tokens: tokens}
}

// Handle authorizes the handshake, joins the caller's inbox group and sends
// the initial chat list.
func (h *InboxSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("upnext-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := middleware.BearerFromRequest(c)
	userID, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	cl := h.hub.JoinInbox(userID, conn, info)

	observability.IncWSActive("inbox")
	publishLifecycle(ctx, "inbox", userID, "ws_connect", info, "")

	if summaries, err := h.conversations.ListSummaries(ctx, userID); err == nil {
		h.hub.PushToInbox(userID, models.RealtimeEvent{
			Type:          models.EventChatList,
			Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
			Conversations: summaries,
		})
	}

	// The request context dies with the handler; the read loop outlives it.
	loopCtx := context.WithoutCancel(ctx)
	go func() {
		var closeReason string
		defer func() {
			h.hub.LeaveInbox(userID, conn)
			observability.DecWSActive("inbox")
			publishLifecycle(loopCtx, "inbox", userID, "ws_disconnect", info, closeReason)
			conn.Close()
		}()

		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		pingDone := make(chan struct{})
		defer close(pingDone)
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-pingDone:
					return
				case <-ticker.C:
					if err := cl.ping(); err != nil {
						return
					}
				}
			}
		}()

		// The inbox channel is push-only; inbound frames are discarded.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					publishLifecycle(loopCtx, "inbox", userID, "ws_error", info, closeReason)
				}
				return
			}
		}
	}()
}
