package models

// RealtimeEvent is the outbound websocket frame shape. Type selects which of
// the optional fields are populated.
type RealtimeEvent struct {
	Type           string                `json:"type"`
	ConversationID int                   `json:"conversation_id,omitempty"`
	MessageID      int                   `json:"message_id,omitempty"`
	UserID         int                   `json:"user_id,omitempty"`
	Username       string                `json:"username,omitempty"`
	Content        string                `json:"content,omitempty"`
	Timestamp      string                `json:"timestamp,omitempty"`
	ReplyTo        *int                  `json:"reply_to,omitempty"`
	IsTyping       *bool                 `json:"is_typing,omitempty"`
	Reaction       string                `json:"reaction,omitempty"`
	Status         string                `json:"status,omitempty"`
	Conversations  []ConversationSummary `json:"conversations,omitempty"`
}

// Outbound event types.
const (
	EventChatList       = "chat_list"
	EventMessage        = "message"
	EventTyping         = "typing"
	EventReadReceipt    = "read_receipt"
	EventEditMessage    = "edit_message"
	EventReaction       = "reaction"
	EventRemoveReaction = "remove_reaction"
	EventUserStatus     = "user_status"
)
