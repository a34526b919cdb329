package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vadim/insta-inbox/internal/domain/comment/entity"
)

// CommentRepository defines the interface for comment storage
type CommentRepository interface {
	// Insert writes a comment if its id is not already stored and reports
	// whether a row was written. Webhook deliveries are not exactly-once
	// upstream, so inserts are keyed on the provider comment id.
	Insert(ctx context.Context, comment *entity.Comment) (bool, error)
	// GetByID retrieves a comment by id, nil when not found
	GetByID(ctx context.Context, id string) (*entity.Comment, error)
	// MarkReplied flips the replied flag to true. The transition is one-way.
	MarkReplied(ctx context.Context, id string, at time.Time) error
	// GetByAccountID retrieves comments for an account with pagination
	GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]entity.Comment, error)
	// GetByMediaID retrieves comments for a media with pagination
	GetByMediaID(ctx context.Context, mediaID string, limit, offset int) ([]entity.Comment, error)
	// Count returns the total count of comments for an account
	Count(ctx context.Context, accountID string) (int64, error)
}

// CommentPostgres implements CommentRepository for PostgreSQL
type CommentPostgres struct {
	pool *pgxpool.Pool
}

// NewCommentPostgres creates a new PostgreSQL comment repository
func NewCommentPostgres(pool *pgxpool.Pool) *CommentPostgres {
	return &CommentPostgres{pool: pool}
}

// Insert writes a comment, no-op on duplicate id
func (r *CommentPostgres) Insert(ctx context.Context, comment *entity.Comment) (bool, error) {
	query := `
		INSERT INTO comments (
			id, media_id, media_product_type, author_id, author_username,
			text, parent_id, account_id, replied, created_at, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	var parentID *string
	if comment.ParentID != "" {
		parentID = &comment.ParentID
	}

	receivedAt := comment.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	tag, err := r.pool.Exec(ctx, query,
		comment.ID,
		comment.MediaID,
		comment.MediaProductType,
		comment.AuthorID,
		comment.AuthorUsername,
		comment.Text,
		parentID,
		comment.AccountID,
		comment.Replied,
		comment.CreatedAt,
		receivedAt,
	)
	if err != nil {
		return false, fmt.Errorf("inserting comment: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves a comment by id
func (r *CommentPostgres) GetByID(ctx context.Context, id string) (*entity.Comment, error) {
	query := `
		SELECT id, media_id, media_product_type, author_id, author_username,
		       text, parent_id, account_id, replied, replied_at, created_at, received_at
		FROM comments
		WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	return scanComment(row)
}

// MarkReplied sets the replied flag and timestamp on a comment
func (r *CommentPostgres) MarkReplied(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE comments
		SET replied = TRUE,
		    replied_at = COALESCE(replied_at, $2)
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("marking comment replied: %w", err)
	}
	return nil
}

// GetByAccountID retrieves comments for an account, newest first
func (r *CommentPostgres) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]entity.Comment, error) {
	query := `
		SELECT id, media_id, media_product_type, author_id, author_username,
		       text, parent_id, account_id, replied, replied_at, created_at, received_at
		FROM comments
		WHERE account_id = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	return scanComments(rows)
}

// GetByMediaID retrieves comments for a media, newest first
func (r *CommentPostgres) GetByMediaID(ctx context.Context, mediaID string, limit, offset int) ([]entity.Comment, error) {
	query := `
		SELECT id, media_id, media_product_type, author_id, author_username,
		       text, parent_id, account_id, replied, replied_at, created_at, received_at
		FROM comments
		WHERE media_id = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, mediaID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("querying comments: %w", err)
	}
	defer rows.Close()

	return scanComments(rows)
}

// Count returns the total count of comments for an account
func (r *CommentPostgres) Count(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM comments WHERE account_id = $1", accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting comments: %w", err)
	}
	return count, nil
}

// scanComment scans a single comment row
func scanComment(row pgx.Row) (*entity.Comment, error) {
	var c entity.Comment
	var parentID *string

	err := row.Scan(
		&c.ID,
		&c.MediaID,
		&c.MediaProductType,
		&c.AuthorID,
		&c.AuthorUsername,
		&c.Text,
		&parentID,
		&c.AccountID,
		&c.Replied,
		&c.RepliedAt,
		&c.CreatedAt,
		&c.ReceivedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning comment: %w", err)
	}

	if parentID != nil {
		c.ParentID = *parentID
	}
	return &c, nil
}

// scanComments scans multiple comment rows
func scanComments(rows pgx.Rows) ([]entity.Comment, error) {
	var comments []entity.Comment

	for rows.Next() {
		var c entity.Comment
		var parentID *string

		err := rows.Scan(
			&c.ID,
			&c.MediaID,
			&c.MediaProductType,
			&c.AuthorID,
			&c.AuthorUsername,
			&c.Text,
			&parentID,
			&c.AccountID,
			&c.Replied,
			&c.RepliedAt,
			&c.CreatedAt,
			&c.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}

		if parentID != nil {
			c.ParentID = *parentID
		}
		comments = append(comments, c)
	}

	return comments, nil
}
