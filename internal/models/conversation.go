package models

import "time"

// Conversation groups two or more participants. Membership is fixed at
// creation time.
type Conversation struct {
	ID        int       `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is a single message inside a conversation. ReplyToID is a weak
// reference: deleting the target nulls it instead of cascading.
type Message struct {
	ID             int        `db:"id" json:"id"`
	ConversationID int        `db:"conversation_id" json:"conversation_id"`
	SenderID       int        `db:"sender_id" json:"sender_id"`
	Content        string     `db:"content" json:"content"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	EditedAt       *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	ReplyToID      *int       `db:"reply_to_id" json:"reply_to,omitempty"`
}

// ReadReceipt records that a user has read a message. One per (message, user).
type ReadReceipt struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// Reaction values accepted on messages.
const (
	ReactionLike  = "like"
	ReactionLove  = "love"
	ReactionLaugh = "laugh"
	ReactionWow   = "wow"
	ReactionSad   = "sad"
	ReactionAngry = "angry"
)

var validReactions = map[string]bool{
	ReactionLike:  true,
	ReactionLove:  true,
	ReactionLaugh: true,
	ReactionWow:   true,
	ReactionSad:   true,
	ReactionAngry: true,
}

// IsValidReaction reports whether the value belongs to the fixed reaction set.
func IsValidReaction(reaction string) bool {
	return validReactions[reaction]
}

// MessageReaction stores one reaction per (message, user); a new reaction
// from the same user replaces the previous one.
type MessageReaction struct {
	MessageID int       `db:"message_id" json:"message_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Reaction  string    `db:"reaction" json:"reaction"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TypingIndicator is ephemeral presence state, continuously overwritten while
// the user keeps typing and removed on stop or disconnect.
type TypingIndicator struct {
	ConversationID int       `db:"conversation_id" json:"conversation_id"`
	UserID         int       `db:"user_id" json:"user_id"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// LastMessage is the most recent message of a conversation as seen by the
// requesting user.
type LastMessage struct {
	ID             int       `json:"id"`
	Content        string    `json:"content"`
	SenderID       int       `json:"sender_id"`
	SenderUsername string    `json:"sender_username"`
	CreatedAt      time.Time `json:"created_at"`
	IsRead         bool      `json:"is_read"`
}

// ConversationSummary is the computed chat-list entry for one user. It is
// derived from persisted state on every request, never stored.
type ConversationSummary struct {
	ID           int           `json:"id"`
	Participants []UserSummary `json:"participants"`
	LastMessage  *LastMessage  `json:"last_message"`
	UnreadCount  int           `json:"unread_count"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
