package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"upnext-service/internal/models"
	"upnext-service/internal/notify"
	"upnext-service/internal/repositories"
	"upnext-service/internal/ws"
)

// ConversationHandler manages the conversation REST surface. Writes fan out
// through the same hub and notifier as the websocket path, so both paths
// trigger identical realtime updates.
type ConversationHandler struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	hub           *ws.Hub
	notifier      notify.Notifier
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations repositories.ConversationRepository, messages repositories.MessageRepository, users repositories.UserRepository, hub *ws.Hub, notifier notify.Notifier) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		users:         users,
		hub:           hub,
		notifier:      notifier,
	}
}

// ListConversations returns the caller's chat-list projection.
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.conversations.ListSummaries(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// StartDirect gets or creates the two-party conversation with another user.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID int `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if userID == req.UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	if _, err := h.users.GetUser(c.Request.Context(), req.UserID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "user not found"})
		return
	}

	conv, created, err := h.conversations.GetOrCreateDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, conv)
}

// CreateConversation creates a conversation with an explicit participant
// list and an optional initial message.
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var req struct {
		ParticipantIDs []int  `json:"participant_ids" binding:"required,min=1"`
		Content        string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	participantIDs := []int{userID}
	for _, id := range req.ParticipantIDs {
		if id != userID {
			participantIDs = append(participantIDs, id)
		}
	}
	if len(participantIDs) < 2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a conversation needs at least one other participant"})
		return
	}

	known, err := h.users.BulkSummaries(c.Request.Context(), participantIDs)
	if err != nil || len(known) != len(participantIDs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown participant"})
		return
	}

	conv, err := h.conversations.CreateConversation(c.Request.Context(), participantIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create conversation"})
		return
	}

	if req.Content != "" {
		msg, err := h.messages.CreateMessage(c.Request.Context(), conv.ID, userID, req.Content, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store initial message"})
			return
		}
		h.notifier.MessageCreated(c.Request.Context(), msg)
	}

	c.JSON(http.StatusCreated, conv)
}

// GetMessages returns the conversation's messages with sender usernames and
// reactions, in persisted creation order.
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	msgs, err := h.messages.ListConversationMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	senders, err := h.users.BulkSummaries(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	usernameByID := map[int]string{}
	for _, u := range senders {
		usernameByID[u.ID] = u.Username
	}

	type messageResponse struct {
		models.Message
		SenderUsername string                   `json:"sender_username,omitempty"`
		Reactions      []models.MessageReaction `json:"reactions"`
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		reactions, err := h.messages.ListReactions(c.Request.Context(), m.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load reactions"})
			return
		}
		resp = append(resp, messageResponse{
			Message:        m,
			SenderUsername: usernameByID[m.SenderID],
			Reactions:      reactions,
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": resp})
}

// PostMessage stores a message and broadcasts it to the conversation room.
func (h *ConversationHandler) PostMessage(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.conversations.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
		ReplyTo *int   `json:"reply_to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messages.CreateMessage(c.Request.Context(), conversationID, userID, req.Content, req.ReplyTo)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}
	h.notifier.MessageCreated(c.Request.Context(), msg)

	h.hub.BroadcastToConversation(conversationID, models.RealtimeEvent{
		Type:      models.EventMessage,
		MessageID: msg.ID,
		UserID:    userID,
		Username:  h.username(c, userID),
		Content:   msg.Content,
		Timestamp: msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		ReplyTo:   msg.ReplyToID,
	})
	c.JSON(http.StatusCreated, msg)
}

// MarkMessageRead records an idempotent read receipt for the caller.
func (h *ConversationHandler) MarkMessageRead(c *gin.Context) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	userID := c.GetInt("userID")
	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}

	member, err := h.conversations.IsParticipant(c.Request.Context(), msg.ConversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return
	}

	receipt, created, err := h.messages.MarkRead(c.Request.Context(), messageID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not mark message read"})
		return
	}
	if created {
		h.notifier.ReadReceiptCreated(c.Request.Context(), receipt)
		h.hub.BroadcastToConversation(msg.ConversationID, models.RealtimeEvent{
			Type:      models.EventReadReceipt,
			MessageID: messageID,
			UserID:    userID,
			Username:  h.username(c, userID),
			Timestamp: receipt.ReadAt.UTC().Format(time.RFC3339Nano),
		})
	}

	c.JSON(http.StatusOK, receipt)
}

// EditMessage lets the sender change a message's content over REST. The edit
// is broadcast to the conversation room like the websocket path.
func (h *ConversationHandler) EditMessage(c *gin.Context) {
	msg, userID, ok := h.messageForCaller(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.messages.EditMessage(c.Request.Context(), msg.ID, userID, req.Content)
	if err != nil {
		if errors.Is(err, repositories.ErrNotMessageSender) {
			c.JSON(http.StatusForbidden, gin.H{"error": "only the sender can edit a message"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not edit message"})
		return
	}

	h.hub.BroadcastToConversation(updated.ConversationID, models.RealtimeEvent{
		Type:      models.EventEditMessage,
		MessageID: updated.ID,
		UserID:    userID,
		Username:  h.username(c, userID),
		Content:   updated.Content,
		Timestamp: updated.EditedAt.UTC().Format(time.RFC3339Nano),
	})
	c.JSON(http.StatusOK, updated)
}

// ReactToMessage saves or replaces the caller's reaction on a message.
func (h *ConversationHandler) ReactToMessage(c *gin.Context) {
	msg, userID, ok := h.messageForCaller(c)
	if !ok {
		return
	}

	var req struct {
		Reaction string `json:"reaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !models.IsValidReaction(req.Reaction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reaction"})
		return
	}

	reaction, err := h.messages.UpsertReaction(c.Request.Context(), msg.ID, userID, req.Reaction)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save reaction"})
		return
	}
	h.notifier.ReactionSaved(c.Request.Context(), msg, reaction)

	c.JSON(http.StatusOK, reaction)
}

// RemoveReaction deletes the caller's reaction, if any.
func (h *ConversationHandler) RemoveReaction(c *gin.Context) {
	msg, userID, ok := h.messageForCaller(c)
	if !ok {
		return
	}

	removed, err := h.messages.DeleteReaction(c.Request.Context(), msg.ID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove reaction"})
		return
	}
	if removed {
		h.hub.BroadcastToConversation(msg.ConversationID, models.RealtimeEvent{
			Type:      models.EventRemoveReaction,
			MessageID: msg.ID,
			UserID:    userID,
			Username:  h.username(c, userID),
		})
	}
	c.Status(http.StatusNoContent)
}

// messageForCaller loads the message behind :message_id and verifies the
// caller belongs to its conversation. On failure the response is already
// written.
func (h *ConversationHandler) messageForCaller(c *gin.Context) (models.Message, int, bool) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return models.Message{}, 0, false
	}

	userID := c.GetInt("userID")
	msg, err := h.messages.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return models.Message{}, 0, false
	}

	member, err := h.conversations.IsParticipant(c.Request.Context(), msg.ConversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return models.Message{}, 0, false
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation participant"})
		return models.Message{}, 0, false
	}

	return msg, userID, true
}

func (h *ConversationHandler) username(c *gin.Context, userID int) string {
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		return ""
	}
	return user.Username
}
