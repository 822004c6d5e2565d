// Package notify holds the post-commit fan-out hooks. Handlers and the
// websocket layer call them right after the triggering write commits, so the
// ordering and failure handling that used to hide behind persistence signals
// stays visible. Hook failures are logged, never propagated: the data change
// has already committed.
package notify

import (
	"context"
	"log"
	"time"

	"upnext-service/internal/models"
	"upnext-service/internal/repositories"
)

// Broadcaster is the group fan-out surface the notifier publishes to.
// *ws.Hub satisfies it.
type Broadcaster interface {
	BroadcastToConversation(conversationID int, event models.RealtimeEvent)
	PushToInbox(userID int, event models.RealtimeEvent)
}

// Notifier fires after a persistence mutation commits, whichever path (REST
// or websocket) performed it.
type Notifier interface {
	MessageCreated(ctx context.Context, msg models.Message)
	ReadReceiptCreated(ctx context.Context, receipt models.ReadReceipt)
	ReactionSaved(ctx context.Context, msg models.Message, reaction models.MessageReaction)
}

// HubNotifier pushes chat-list refreshes and reaction events through the hub.
// Chat lists are recomputed from persisted state on every push, never cached.
type HubNotifier struct {
	hub           Broadcaster
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
}

// NewHubNotifier constructs a HubNotifier.
func NewHubNotifier(hub Broadcaster, conversations repositories.ConversationRepository, messages repositories.MessageRepository, users repositories.UserRepository) *HubNotifier {
	return &HubNotifier{hub: hub, conversations: conversations, messages: messages, users: users}
}

// MessageCreated bumps the conversation's last-activity timestamp and pushes
// a fresh chat list to every participant's inbox.
func (n *HubNotifier) MessageCreated(ctx context.Context, msg models.Message) {
	if err := n.conversations.Touch(ctx, msg.ConversationID); err != nil {
		log.Printf("notify: touch conversation %d failed: %v", msg.ConversationID, err)
	}

	participants, err := n.conversations.ParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		log.Printf("notify: list participants of conversation %d failed: %v", msg.ConversationID, err)
		return
	}
	for _, userID := range participants {
		n.pushChatList(ctx, userID)
	}
}

// ReadReceiptCreated pushes a fresh chat list to the message sender so their
// read-state view updates.
func (n *HubNotifier) ReadReceiptCreated(ctx context.Context, receipt models.ReadReceipt) {
	msg, err := n.messages.GetMessage(ctx, receipt.MessageID)
	if err != nil {
		log.Printf("notify: load message %d failed: %v", receipt.MessageID, err)
		return
	}
	n.pushChatList(ctx, msg.SenderID)
}

// ReactionSaved broadcasts the reaction to the conversation room.
func (n *HubNotifier) ReactionSaved(ctx context.Context, msg models.Message, reaction models.MessageReaction) {
	n.hub.BroadcastToConversation(msg.ConversationID, models.RealtimeEvent{
		Type:      models.EventReaction,
		MessageID: reaction.MessageID,
		UserID:    reaction.UserID,
		Username:  n.username(ctx, reaction.UserID),
		Reaction:  reaction.Reaction,
	})
}

func (n *HubNotifier) pushChatList(ctx context.Context, userID int) {
	summaries, err := n.conversations.ListSummaries(ctx, userID)
	if err != nil {
		log.Printf("notify: chat list for user %d failed: %v", userID, err)
		return
	}
	n.hub.PushToInbox(userID, models.RealtimeEvent{
		Type:          models.EventChatList,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Conversations: summaries,
	})
}

func (n *HubNotifier) username(ctx context.Context, userID int) string {
	user, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return ""
	}
	return user.Username
}
