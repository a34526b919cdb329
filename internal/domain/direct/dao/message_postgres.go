package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/insta-inbox/internal/domain/direct/entity"
)

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	// Insert writes a message if its id is not already stored and reports
	// whether a row was written. Keyed on the provider message id so webhook
	// retries and dispatcher/echo pairs converge to one row.
	Insert(ctx context.Context, msg *entity.Message) (bool, error)
	// GetByID retrieves a message by id, nil when not found
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	// GetByParticipant retrieves the thread with one participant, newest first
	GetByParticipant(ctx context.Context, accountID, participantID string, limit, offset int) ([]entity.Message, error)
	// Count returns the total count of messages in a thread
	Count(ctx context.Context, accountID, participantID string) (int64, error)
}

// MessagePostgres implements MessageRepository for PostgreSQL
type MessagePostgres struct {
	pool *pgxpool.Pool
}

// NewMessagePostgres creates a new PostgreSQL message repository
func NewMessagePostgres(pool *pgxpool.Pool) *MessagePostgres {
	return &MessagePostgres{pool: pool}
}

// Insert writes a message, no-op on duplicate id
func (r *MessagePostgres) Insert(ctx context.Context, msg *entity.Message) (bool, error) {
	query := `
		INSERT INTO dm_messages (
			id, text, attachment_url, attachment_type, archived_url, from_me,
			participant_id, participant_username, account_id, channel,
			timestamp, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	tag, err := r.pool.Exec(ctx, query,
		msg.ID,
		msg.Text,
		msg.AttachmentURL,
		msg.AttachmentType,
		msg.ArchivedURL,
		msg.FromMe,
		msg.ParticipantID,
		msg.ParticipantUsername,
		msg.AccountID,
		msg.Channel,
		msg.Timestamp,
		receivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting message: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves a message by id
func (r *MessagePostgres) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	query := `
		SELECT id, text, attachment_url, attachment_type, archived_url, from_me,
		       participant_id, participant_username, account_id, channel,
		       timestamp, received_at
		FROM dm_messages
		WHERE id = $1
	`

	var msg entity.Message
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.Text,
		&msg.AttachmentURL,
		&msg.AttachmentType,
		&msg.ArchivedURL,
		&msg.FromMe,
		&msg.ParticipantID,
		&msg.ParticipantUsername,
		&msg.AccountID,
		&msg.Channel,
		&msg.Timestamp,
		&msg.ReceivedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	return &msg, nil
}

// GetByParticipant retrieves the message thread with one participant
func (r *MessagePostgres) GetByParticipant(ctx context.Context, accountID, participantID string, limit, offset int) ([]entity.Message, error) {
	query := `
		SELECT id, text, attachment_url, attachment_type, archived_url, from_me,
		       participant_id, participant_username, account_id, channel,
		       timestamp, received_at
		FROM dm_messages
		WHERE account_id = $1 AND participant_id = $2
		ORDER BY timestamp DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.pool.Query(ctx, query, accountID, participantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []entity.Message
	for rows.Next() {
		var msg entity.Message
		err := rows.Scan(
			&msg.ID,
			&msg.Text,
			&msg.AttachmentURL,
			&msg.AttachmentType,
			&msg.ArchivedURL,
			&msg.FromMe,
			&msg.ParticipantID,
			&msg.ParticipantUsername,
			&msg.AccountID,
			&msg.Channel,
			&msg.Timestamp,
			&msg.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// Count returns the total count of messages in a thread
func (r *MessagePostgres) Count(ctx context.Context, accountID, participantID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM dm_messages WHERE account_id = $1 AND participant_id = $2",
		accountID, participantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}
