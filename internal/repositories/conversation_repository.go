package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"upnext-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence and the computed
// chat-list projection.
type ConversationRepository interface {
	GetOrCreateDirect(ctx context.Context, userID, otherID int) (models.Conversation, bool, error)
	CreateConversation(ctx context.Context, participantIDs []int) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID int) (bool, error)
	ParticipantIDs(ctx context.Context, conversationID int) ([]int, error)
	Touch(ctx context.Context, conversationID int) error
	ListSummaries(ctx context.Context, userID int) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// GetOrCreateDirect returns the existing two-party conversation between the
// users, creating it when none exists. The second return value reports
// whether a new conversation was created.
func (r *ConversationRepo) GetOrCreateDirect(ctx context.Context, userID, otherID int) (models.Conversation, bool, error) {
	if userID == otherID {
		return models.Conversation{}, false, errors.New("cannot start a conversation with yourself")
	}

	var conv models.Conversation
	query := `SELECT c.id, c.created_at, c.updated_at FROM conversations c
        JOIN conversation_participants p1 ON p1.conversation_id = c.id AND p1.user_id = $1
        JOIN conversation_participants p2 ON p2.conversation_id = c.id AND p2.user_id = $2
        WHERE (SELECT COUNT(*) FROM conversation_participants p WHERE p.conversation_id = c.id) = 2
        LIMIT 1`
	err := r.db.GetContext(ctx, &conv, query, userID, otherID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, false, err
	}

	conv, err = r.CreateConversation(ctx, []int{userID, otherID})
	return conv, err == nil, err
}

// CreateConversation creates a conversation with a fixed participant set.
func (r *ConversationRepo) CreateConversation(ctx context.Context, participantIDs []int) (models.Conversation, error) {
	if len(participantIDs) < 2 {
		return models.Conversation{}, errors.New("a conversation needs at least two participants")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Conversation{}, err
	}
	defer tx.Rollback()

	var conv models.Conversation
	if err := tx.QueryRowxContext(ctx, `INSERT INTO conversations DEFAULT VALUES RETURNING id, created_at, updated_at`).
		StructScan(&conv); err != nil {
		return models.Conversation{}, err
	}
	for _, userID := range participantIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			conv.ID, userID); err != nil {
			return models.Conversation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, created_at, updated_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id=$1 AND user_id=$2)`,
		conversationID, userID)
	return exists, err
}

// ParticipantIDs returns all participant user ids of a conversation.
func (r *ConversationRepo) ParticipantIDs(ctx context.Context, conversationID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM conversation_participants WHERE conversation_id=$1 ORDER BY user_id`, conversationID)
	return ids, err
}

// Touch bumps the conversation's last-activity timestamp.
func (r *ConversationRepo) Touch(ctx context.Context, conversationID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET updated_at = NOW() WHERE id=$1`, conversationID)
	return err
}

// ListSummaries builds the chat-list projection for a user: per conversation
// the other participants, the last message with the requester's read state,
// the unread count, and the last-activity timestamp, most recent first. The
// result is always recomputed from persisted state.
func (r *ConversationRepo) ListSummaries(ctx context.Context, userID int) ([]models.ConversationSummary, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs, `SELECT c.id, c.created_at, c.updated_at FROM conversations c
        JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
        ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		var others []models.UserSummary
		if err := r.db.SelectContext(ctx, &others, `SELECT u.id, u.username, u.display_name, u.avatar_url
            FROM users u
            JOIN conversation_participants p ON p.user_id = u.id
            WHERE p.conversation_id = $1 AND u.id <> $2
            ORDER BY u.id`, conv.ID, userID); err != nil {
			return nil, err
		}

		summary := models.ConversationSummary{
			ID:           conv.ID,
			Participants: others,
			UpdatedAt:    conv.UpdatedAt,
		}

		var last struct {
			ID             int          `db:"id"`
			Content        string       `db:"content"`
			SenderID       int          `db:"sender_id"`
			SenderUsername string       `db:"sender_username"`
			CreatedAt      sql.NullTime `db:"created_at"`
			IsRead         bool         `db:"is_read"`
		}
		err := r.db.GetContext(ctx, &last, `SELECT m.id, m.content, m.sender_id, u.username AS sender_username,
            m.created_at,
            EXISTS(SELECT 1 FROM read_receipts rr WHERE rr.message_id = m.id AND rr.user_id = $2) AS is_read
            FROM messages m
            JOIN users u ON u.id = m.sender_id
            WHERE m.conversation_id = $1
            ORDER BY m.created_at DESC, m.id DESC
            LIMIT 1`, conv.ID, userID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			summary.LastMessage = &models.LastMessage{
				ID:             last.ID,
				Content:        last.Content,
				SenderID:       last.SenderID,
				SenderUsername: last.SenderUsername,
				CreatedAt:      last.CreatedAt.Time,
				IsRead:         last.IsRead,
			}
		}

		if err := r.db.GetContext(ctx, &summary.UnreadCount, `SELECT COUNT(*) FROM messages m
            WHERE m.conversation_id = $1
            AND NOT EXISTS(SELECT 1 FROM read_receipts rr WHERE rr.message_id = m.id AND rr.user_id = $2)`,
			conv.ID, userID); err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	// The query already orders by updated_at, but Touch runs outside the
	// message insert so re-sort to keep the contract explicit.
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}
