package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/insta-inbox/internal/domain/comment/entity"
)

// ReplyRepository defines the interface for sent-reply storage
type ReplyRepository interface {
	// Insert writes a sent reply record, no-op on duplicate reply id
	Insert(ctx context.Context, reply *entity.Reply) error
	// GetByCommentID retrieves replies sent to a comment
	GetByCommentID(ctx context.Context, commentID string) ([]entity.Reply, error)
}

// ReplyPostgres implements ReplyRepository for PostgreSQL
type ReplyPostgres struct {
	pool *pgxpool.Pool
}

// NewReplyPostgres creates a new PostgreSQL reply repository
func NewReplyPostgres(pool *pgxpool.Pool) *ReplyPostgres {
	return &ReplyPostgres{pool: pool}
}

// Insert writes a sent reply record
func (r *ReplyPostgres) Insert(ctx context.Context, reply *entity.Reply) error {
	query := `
		INSERT INTO comment_replies (reply_id, comment_id, text, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (reply_id) DO NOTHING
	`

	sentAt := reply.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, query, reply.ReplyID, reply.CommentID, reply.Text, sentAt)
	if err != nil {
		return fmt.Errorf("inserting reply: %w", err)
	}
	return nil
}

// GetByCommentID retrieves replies sent to a comment, oldest first
func (r *ReplyPostgres) GetByCommentID(ctx context.Context, commentID string) ([]entity.Reply, error) {
	query := `
		SELECT reply_id, comment_id, text, sent_at
		FROM comment_replies
		WHERE comment_id = $1
		ORDER BY sent_at ASC
	`

	rows, err := r.pool.Query(ctx, query, commentID)
	if err != nil {
		return nil, fmt.Errorf("querying replies: %w", err)
	}
	defer rows.Close()

	var replies []entity.Reply
	for rows.Next() {
		var rep entity.Reply
		if err := rows.Scan(&rep.ReplyID, &rep.CommentID, &rep.Text, &rep.SentAt); err != nil {
			return nil, fmt.Errorf("scanning reply row: %w", err)
		}
		replies = append(replies, rep)
	}

	return replies, nil
}
