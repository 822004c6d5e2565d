package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"upnext-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")
var ErrNotMessageSender = errors.New("only the sender can edit a message")

// MessageRepository defines interactions for messages, read receipts,
// reactions and typing indicators.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	EditMessage(ctx context.Context, messageID, senderID int, content string) (models.Message, error)
	MarkRead(ctx context.Context, messageID, userID int) (models.ReadReceipt, bool, error)
	UnreadMessages(ctx context.Context, conversationID, userID int) ([]models.Message, error)
	UpsertReaction(ctx context.Context, messageID, userID int, reaction string) (models.MessageReaction, error)
	DeleteReaction(ctx context.Context, messageID, userID int) (bool, error)
	ListReactions(ctx context.Context, messageID int) ([]models.MessageReaction, error)
	SetTyping(ctx context.Context, conversationID, userID int) error
	ClearTyping(ctx context.Context, conversationID, userID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. A reply reference that does not resolve to
// a message in the same conversation is stored as null rather than rejected.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID, senderID int, content string, replyToID *int) (models.Message, error) {
	if replyToID != nil {
		var sameConversation bool
		err := r.db.GetContext(ctx, &sameConversation,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id=$1 AND conversation_id=$2)`, *replyToID, conversationID)
		if err != nil {
			return models.Message{}, err
		}
		if !sameConversation {
			replyToID = nil
		}
	}

	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (conversation_id, sender_id, content, reply_to_id)
        VALUES ($1, $2, $3, $4)
        RETURNING id, conversation_id, sender_id, content, created_at, edited_at, reply_to_id`,
		conversationID, senderID, content, replyToID).StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT id, conversation_id, sender_id, content, created_at, edited_at, reply_to_id FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListConversationMessages returns all messages of a conversation in
// persisted creation order.
func (r *MessageRepo) ListConversationMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT id, conversation_id, sender_id, content, created_at, edited_at, reply_to_id
         FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`, conversationID)
	return msgs, err
}

// EditMessage updates content and edit timestamp. The sender check happens in
// the same statement so a non-sender can never change persisted content.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$3, edited_at=NOW()
        WHERE id=$1 AND sender_id=$2
        RETURNING id, conversation_id, sender_id, content, created_at, edited_at, reply_to_id`,
		messageID, senderID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrNotMessageSender
	}
	return msg, err
}

// MarkRead creates a read receipt. Marking the same message twice by the same
// user is a no-op; the bool reports whether a new receipt was created.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, userID int) (models.ReadReceipt, bool, error) {
	var receipt models.ReadReceipt
	err := r.db.QueryRowxContext(ctx, `INSERT INTO read_receipts (message_id, user_id) VALUES ($1, $2)
        ON CONFLICT (message_id, user_id) DO NOTHING
        RETURNING message_id, user_id, read_at`, messageID, userID).StructScan(&receipt)
	if err == nil {
		return receipt, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ReadReceipt{}, false, err
	}

	err = r.db.GetContext(ctx, &receipt,
		`SELECT message_id, user_id, read_at FROM read_receipts WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ReadReceipt{}, false, ErrMessageNotFound
	}
	return receipt, false, err
}

// UnreadMessages returns the conversation's messages the user has no receipt
// for, oldest first.
func (r *MessageRepo) UnreadMessages(ctx context.Context, conversationID, userID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT m.id, m.conversation_id, m.sender_id, m.content, m.created_at, m.edited_at, m.reply_to_id
        FROM messages m
        WHERE m.conversation_id=$1
        AND NOT EXISTS(SELECT 1 FROM read_receipts rr WHERE rr.message_id = m.id AND rr.user_id=$2)
        ORDER BY m.created_at ASC, m.id ASC`, conversationID, userID)
	return msgs, err
}

// UpsertReaction stores the user's reaction, replacing any previous one.
func (r *MessageRepo) UpsertReaction(ctx context.Context, messageID, userID int, reaction string) (models.MessageReaction, error) {
	var stored models.MessageReaction
	err := r.db.QueryRowxContext(ctx, `INSERT INTO message_reactions (message_id, user_id, reaction) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET reaction = EXCLUDED.reaction
        RETURNING message_id, user_id, reaction, created_at`, messageID, userID, reaction).StructScan(&stored)
	return stored, err
}

// DeleteReaction removes the user's reaction. Returns whether a row existed.
func (r *MessageRepo) DeleteReaction(ctx context.Context, messageID, userID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2`, messageID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// ListReactions returns all reactions on a message.
func (r *MessageRepo) ListReactions(ctx context.Context, messageID int) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction
	err := r.db.SelectContext(ctx, &reactions,
		`SELECT message_id, user_id, reaction, created_at FROM message_reactions WHERE message_id=$1 ORDER BY created_at ASC`, messageID)
	return reactions, err
}

// SetTyping upserts the user's typing indicator for the conversation.
func (r *MessageRepo) SetTyping(ctx context.Context, conversationID, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO typing_indicators (conversation_id, user_id, updated_at) VALUES ($1, $2, $3)
        ON CONFLICT (conversation_id, user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		conversationID, userID, time.Now().UTC())
	return err
}

// ClearTyping removes the user's typing indicator for the conversation.
func (r *MessageRepo) ClearTyping(ctx context.Context, conversationID, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM typing_indicators WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	return err
}
