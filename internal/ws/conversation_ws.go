package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"upnext-service/internal/auth"
	"upnext-service/internal/middleware"
	"upnext-service/internal/models"
	"upnext-service/internal/notify"
	"upnext-service/internal/observability"
	"upnext-service/internal/repositories"
)

// ConversationSocketHandler handles conversation-scoped websocket
// connections: message delivery, typing presence, read receipts, reactions.
type ConversationSocketHandler struct {
	hub           *Hub
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	notifier      notify.Notifier
	tokens        *auth.TokenService
}

// NewConversationSocketHandler constructs a ConversationSocketHandler.
func NewConversationSocketHandler(hub *Hub, conversations repositories.ConversationRepository, messages repositories.MessageRepository, users repositories.UserRepository, notifier notify.Notifier, tokens *auth.TokenService) *ConversationSocketHandler {
	return &ConversationSocketHandler{
		hub:           hub,
		conversations: conversations,
		messages:      messages,
		users:         users,
		notifier:      notifier,
		tokens:        tokens,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is the per-connection state the frame handlers operate on.
type session struct {
	conversationID int
	userID         int
	username       string
}

// inboundFrame is the JSON shape of client frames; Type selects which fields
// matter.
type inboundFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	ReplyTo   *int   `json:"reply_to"`
	IsTyping  bool   `json:"is_typing"`
	MessageID int    `json:"message_id"`
	Reaction  string `json:"reaction"`
}

// Handle authorizes the handshake, joins the room and runs the read loop.
// Inbound frames are processed one at a time in arrival order.
func (h *ConversationSocketHandler) Handle(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	ctx, span := otel.Tracer("upnext-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := middleware.BearerFromRequest(c)
	userID, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	user, err := h.users.GetUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		Username:    user.Username,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	cl := h.hub.JoinConversation(conversationID, conn, info)

	observability.IncWSActive("conversation")
	publishLifecycle(ctx, "conversation", conversationID, "ws_connect", info, "")

	sess := session{conversationID: conversationID, userID: userID, username: user.Username}

	h.hub.BroadcastToConversation(conversationID, models.RealtimeEvent{
		Type:     models.EventUserStatus,
		UserID:   sess.userID,
		Username: sess.username,
		Status:   "online",
	})
	h.markBacklogRead(ctx, sess)

	// The server cancels the request context once this handler returns, so
	// the read loop and its disconnect cleanup run on a detached context
	// scoped to the connection instead.
	go h.readLoop(context.WithoutCancel(ctx), conn, cl, sess, info)
}

func (h *ConversationSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, cl *client, sess session, info ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.LeaveConversation(sess.conversationID, conn)
		observability.DecWSActive("conversation")
		publishLifecycle(ctx, "conversation", sess.conversationID, "ws_disconnect", info, closeReason)

		// Presence and typing state must not outlive the connection.
		h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
			Type:     models.EventUserStatus,
			UserID:   sess.userID,
			Username: sess.username,
			Status:   "offline",
		})
		if err := h.messages.ClearTyping(ctx, sess.conversationID, sess.userID); err != nil {
			log.Printf("ws: clear typing for user %d failed: %v", sess.userID, err)
		}
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

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				publishLifecycle(ctx, "conversation", sess.conversationID, "ws_error", info, closeReason)
			}
			return
		}
		h.handleFrame(ctx, sess, data)
	}
}

// handleFrame dispatches one inbound frame. Malformed payloads, unknown
// types and unauthorized actions are logged and dropped without a reply.
func (h *ConversationSocketHandler) handleFrame(ctx context.Context, sess session, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("ws: malformed frame from user %d: %v", sess.userID, err)
		return
	}

	switch frame.Type {
	case "message":
		h.handleMessage(ctx, sess, frame)
	case "typing":
		h.handleTyping(ctx, sess, frame)
	case "read_receipt":
		h.handleReadReceipt(ctx, sess, frame)
	case "edit_message":
		h.handleEditMessage(ctx, sess, frame)
	case "reaction":
		h.handleReaction(ctx, sess, frame)
	case "remove_reaction":
		h.handleRemoveReaction(ctx, sess, frame)
	default:
		log.Printf("ws: unknown frame type %q from user %d", frame.Type, sess.userID)
	}
}

func (h *ConversationSocketHandler) handleMessage(ctx context.Context, sess session, frame inboundFrame) {
	if frame.Content == "" {
		log.Printf("ws: dropping empty message from user %d", sess.userID)
		return
	}

	msg, err := h.messages.CreateMessage(ctx, sess.conversationID, sess.userID, frame.Content, frame.ReplyTo)
	if err != nil {
		log.Printf("ws: store message failed: %v", err)
		return
	}
	h.notifier.MessageCreated(ctx, msg)

	h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
		Type:      models.EventMessage,
		MessageID: msg.ID,
		UserID:    sess.userID,
		Username:  sess.username,
		Content:   msg.Content,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		ReplyTo:   msg.ReplyToID,
	})
}

// handleTyping broadcasts the current typing state. Receivers treat the
// event as level-triggered, so repeated "on" signals are harmless.
func (h *ConversationSocketHandler) handleTyping(ctx context.Context, sess session, frame inboundFrame) {
	var err error
	if frame.IsTyping {
		err = h.messages.SetTyping(ctx, sess.conversationID, sess.userID)
	} else {
		err = h.messages.ClearTyping(ctx, sess.conversationID, sess.userID)
	}
	if err != nil {
		log.Printf("ws: typing indicator update failed: %v", err)
		return
	}

	isTyping := frame.IsTyping
	h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
		Type:     models.EventTyping,
		UserID:   sess.userID,
		Username: sess.username,
		IsTyping: &isTyping,
	})
}

func (h *ConversationSocketHandler) handleReadReceipt(ctx context.Context, sess session, frame inboundFrame) {
	if frame.MessageID == 0 {
		log.Printf("ws: read_receipt without message_id from user %d", sess.userID)
		return
	}

	if msg, err := h.messages.GetMessage(ctx, frame.MessageID); err != nil || msg.ConversationID != sess.conversationID {
		log.Printf("ws: read_receipt on unknown message %d from user %d", frame.MessageID, sess.userID)
		return
	}

	receipt, created, err := h.messages.MarkRead(ctx, frame.MessageID, sess.userID)
	if err != nil {
		log.Printf("ws: mark read failed: %v", err)
		return
	}
	if created {
		h.notifier.ReadReceiptCreated(ctx, receipt)
	}

	h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
		Type:      models.EventReadReceipt,
		MessageID: frame.MessageID,
		UserID:    sess.userID,
		Username:  sess.username,
		Timestamp: receipt.ReadAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *ConversationSocketHandler) handleEditMessage(ctx context.Context, sess session, frame inboundFrame) {
	if frame.MessageID == 0 || frame.Content == "" {
		log.Printf("ws: edit_message missing fields from user %d", sess.userID)
		return
	}

	msg, err := h.messages.EditMessage(ctx, frame.MessageID, sess.userID, frame.Content)
	if err != nil {
		// Includes the non-sender case; the connection gets no error frame.
		log.Printf("ws: edit message %d by user %d rejected: %v", frame.MessageID, sess.userID, err)
		return
	}

	h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
		Type:      models.EventEditMessage,
		MessageID: msg.ID,
		UserID:    sess.userID,
		Username:  sess.username,
		Content:   msg.Content,
		Timestamp: msg.EditedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *ConversationSocketHandler) handleReaction(ctx context.Context, sess session, frame inboundFrame) {
	if frame.MessageID == 0 || !models.IsValidReaction(frame.Reaction) {
		log.Printf("ws: invalid reaction %q from user %d", frame.Reaction, sess.userID)
		return
	}

	msg, err := h.messages.GetMessage(ctx, frame.MessageID)
	if err != nil || msg.ConversationID != sess.conversationID {
		log.Printf("ws: reaction on unknown message %d from user %d", frame.MessageID, sess.userID)
		return
	}

	reaction, err := h.messages.UpsertReaction(ctx, frame.MessageID, sess.userID, frame.Reaction)
	if err != nil {
		log.Printf("ws: store reaction failed: %v", err)
		return
	}
	h.notifier.ReactionSaved(ctx, msg, reaction)
}

func (h *ConversationSocketHandler) handleRemoveReaction(ctx context.Context, sess session, frame inboundFrame) {
	if frame.MessageID == 0 {
		log.Printf("ws: remove_reaction without message_id from user %d", sess.userID)
		return
	}

	removed, err := h.messages.DeleteReaction(ctx, frame.MessageID, sess.userID)
	if err != nil {
		log.Printf("ws: remove reaction failed: %v", err)
		return
	}
	if !removed {
		return
	}

	h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
		Type:      models.EventRemoveReaction,
		MessageID: frame.MessageID,
		UserID:    sess.userID,
		Username:  sess.username,
	})
}

// markBacklogRead marks every message the connecting user has not read yet
// and emits a read receipt per newly read message.
func (h *ConversationSocketHandler) markBacklogRead(ctx context.Context, sess session) {
	unread, err := h.messages.UnreadMessages(ctx, sess.conversationID, sess.userID)
	if err != nil {
		log.Printf("ws: load unread messages failed: %v", err)
		return
	}

	for _, msg := range unread {
		receipt, created, err := h.messages.MarkRead(ctx, msg.ID, sess.userID)
		if err != nil {
			if !errors.Is(err, repositories.ErrMessageNotFound) {
				log.Printf("ws: mark backlog message %d read failed: %v", msg.ID, err)
			}
			continue
		}
		if !created {
			continue
		}
		h.notifier.ReadReceiptCreated(ctx, receipt)
		h.hub.BroadcastToConversation(sess.conversationID, models.RealtimeEvent{
			Type:      models.EventReadReceipt,
			MessageID: msg.ID,
			UserID:    sess.userID,
			Username:  sess.username,
			Timestamp: receipt.ReadAt.UTC().Format(time.RFC3339Nano),
		})
	}
}
