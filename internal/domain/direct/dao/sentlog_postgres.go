package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SentLogEntry is one record in the append-only dispatcher audit log. It is
// distinct from the dm_messages row for the same send: the log answers "what
// did this service dispatch and on which channel", the message row is the
// unified thread.
type SentLogEntry struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	RecipientID string    `json:"recipient_id"`
	CommentID   string    `json:"comment_id,omitempty"`
	Channel     string    `json:"channel"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// SentLogRepository defines the interface for the sent-message log
type SentLogRepository interface {
	// Append records a dispatched message
	Append(ctx context.Context, entry *SentLogEntry) error
	// GetByRecipient retrieves log entries for a recipient, newest first
	GetByRecipient(ctx context.Context, recipientID string, limit int) ([]SentLogEntry, error)
}

// SentLogPostgres implements SentLogRepository for PostgreSQL
type SentLogPostgres struct {
	pool *pgxpool.Pool
}

// NewSentLogPostgres creates a new PostgreSQL sent-log repository
func NewSentLogPostgres(pool *pgxpool.Pool) *SentLogPostgres {
	return &SentLogPostgres{pool: pool}
}

// Append records a dispatched message
func (r *SentLogPostgres) Append(ctx context.Context, entry *SentLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO dm_sent_log (id, message_id, recipient_id, comment_id, channel, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.MessageID,
		entry.RecipientID,
		entry.CommentID,
		entry.Channel,
		entry.Text,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appending sent log entry: %w", err)
	}

	return nil
}

// GetByRecipient retrieves log entries for a recipient
func (r *SentLogPostgres) GetByRecipient(ctx context.Context, recipientID string, limit int) ([]SentLogEntry, error) {
	query := `
		SELECT id, message_id, recipient_id, comment_id, channel, text, created_at
		FROM dm_sent_log
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sent log: %w", err)
	}
	defer rows.Close()

	var entries []SentLogEntry
	for rows.Next() {
		var e SentLogEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.RecipientID, &e.CommentID, &e.Channel, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning sent log row: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}
