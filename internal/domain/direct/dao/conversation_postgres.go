package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/insta-inbox/internal/domain/direct/entity"
)

// ConversationRepository defines the interface for conversation storage
type ConversationRepository interface {
	// ApplyMessage folds a newly stored message into the keyed conversation:
	// the last-message snapshot is replaced, the unread counter increments by
	// one for inbound messages and resets to zero for operator-sent ones.
	// Must be called exactly once per stored message, after the message write.
	ApplyMessage(ctx context.Context, msg *entity.Message) error
	// Get retrieves a conversation by key, nil when not found
	Get(ctx context.Context, accountID, participantID string) (*entity.Conversation, error)
	// GetByAccountID retrieves conversations for an account with pagination
	GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]entity.Conversation, error)
	// Count returns the total count of conversations for an account
	Count(ctx context.Context, accountID string) (int64, error)
}

// ConversationPostgres implements ConversationRepository for PostgreSQL
type ConversationPostgres struct {
	pool *pgxpool.Pool
}

// NewConversationPostgres creates a new PostgreSQL conversation repository
func NewConversationPostgres(pool *pgxpool.Pool) *ConversationPostgres {
	return &ConversationPostgres{pool: pool}
}

// ApplyMessage merges a message into the conversation summary in a single
// statement, so the counter arithmetic holds under concurrent deliveries.
func (r *ConversationPostgres) ApplyMessage(ctx context.Context, msg *entity.Message) error {
	query := `
		INSERT INTO dm_conversations (
			account_id, participant_id, participant_username,
			last_message_text, last_message_at, last_message_is_from_me,
			unread_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $6 THEN 0 ELSE 1 END, NOW(), NOW())
		ON CONFLICT (account_id, participant_id) DO UPDATE SET
			participant_username = COALESCE(NULLIF(EXCLUDED.participant_username, ''), dm_conversations.participant_username),
			last_message_text = EXCLUDED.last_message_text,
			last_message_at = EXCLUDED.last_message_at,
			last_message_is_from_me = EXCLUDED.last_message_is_from_me,
			unread_count = CASE
				WHEN EXCLUDED.last_message_is_from_me THEN 0
				ELSE dm_conversations.unread_count + 1
			END,
			updated_at = NOW()
	`

	lastMessageAt := msg.Timestamp
	if lastMessageAt.IsZero() {
		lastMessageAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, query,
		msg.AccountID,
		msg.ParticipantID,
		msg.ParticipantUsername,
		msg.Text,
		lastMessageAt,
		msg.FromMe,
	)
	if err != nil {
		return fmt.Errorf("applying message to conversation: %w", err)
	}

	return nil
}

// Get retrieves a conversation by its (account, participant) key
func (r *ConversationPostgres) Get(ctx context.Context, accountID, participantID string) (*entity.Conversation, error) {
	query := `
		SELECT account_id, participant_id, participant_username,
		       last_message_text, last_message_at, last_message_is_from_me,
		       unread_count, created_at, updated_at
		FROM dm_conversations
		WHERE account_id = $1 AND participant_id = $2
	`

	row := r.pool.QueryRow(ctx, query, accountID, participantID)
	return scanConversation(row)
}

// GetByAccountID retrieves conversations ordered by recency
func (r *ConversationPostgres) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]entity.Conversation, error) {
	query := `
		SELECT account_id, participant_id, participant_username,
		       last_message_text, last_message_at, last_message_is_from_me,
		       unread_count, created_at, updated_at
		FROM dm_conversations
		WHERE account_id = $1
		ORDER BY last_message_at DESC NULLS LAST, updated_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []entity.Conversation
	for rows.Next() {
		var conv entity.Conversation
		var lastMessageAt *time.Time

		err := rows.Scan(
			&conv.AccountID,
			&conv.ParticipantID,
			&conv.ParticipantUsername,
			&conv.LastMessageText,
			&lastMessageAt,
			&conv.LastMessageIsFromMe,
			&conv.UnreadCount,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}

		conv.LastMessageAt = lastMessageAt
		conversations = append(conversations, conv)
	}

	return conversations, nil
}

// Count returns the total count of conversations for an account
func (r *ConversationPostgres) Count(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM dm_conversations WHERE account_id = $1", accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting conversations: %w", err)
	}
	return count, nil
}

// scanConversation scans a single conversation row
func scanConversation(row pgx.Row) (*entity.Conversation, error) {
	var conv entity.Conversation
	var lastMessageAt *time.Time

	err := row.Scan(
		&conv.AccountID,
		&conv.ParticipantID,
		&conv.ParticipantUsername,
		&conv.LastMessageText,
		&lastMessageAt,
		&conv.LastMessageIsFromMe,
		&conv.UnreadCount,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	conv.LastMessageAt = lastMessageAt
	return &conv, nil
}
