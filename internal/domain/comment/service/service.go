package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadim/insta-inbox/internal/domain/comment/dao"
	"github.com/vadim/insta-inbox/internal/domain/comment/entity"
)

// InstagramClient defines the interface for the comment reply API
type InstagramClient interface {
	ReplyToComment(ctx context.Context, commentID, accessToken, message string) (string, error)
}

// Service handles comment ingestion and reply dispatch
type Service struct {
	ig       InstagramClient
	comments dao.CommentRepository
	replies  dao.ReplyRepository
	logger   *slog.Logger
}

// New creates a new comment service
func New(ig InstagramClient, comments dao.CommentRepository, replies dao.ReplyRepository, logger *slog.Logger) *Service {
	return &Service{
		ig:       ig,
		comments: comments,
		replies:  replies,
		logger:   logger,
	}
}

// IngestCommentInput represents a normalized comment-change event
type IngestCommentInput struct {
	AccountID        string
	CommentID        string
	Text             string
	MediaID          string
	MediaProductType string
	AuthorID         string
	AuthorUsername   string
	ParentID         string
	CreatedAt        time.Time
}

// IngestComment stores an inbound comment idempotently. When the comment is a
// reply to another stored comment, the parent's replied flag flips to true.
func (s *Service) IngestComment(ctx context.Context, in IngestCommentInput) error {
	if in.CommentID == "" {
		return nil
	}

	existing, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return fmt.Errorf("checking comment existence: %w", err)
	}
	if existing != nil {
		s.logger.Debug("comment already stored, skipping", "comment_id", in.CommentID)
		return nil
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	comment := &entity.Comment{
		ID:               in.CommentID,
		MediaID:          in.MediaID,
		MediaProductType: in.MediaProductType,
		AuthorID:         in.AuthorID,
		AuthorUsername:   in.AuthorUsername,
		Text:             in.Text,
		ParentID:         in.ParentID,
		AccountID:        in.AccountID,
		Replied:          false,
		CreatedAt:        createdAt,
		ReceivedAt:       time.Now(),
	}

	inserted, err := s.comments.Insert(ctx, comment)
	if err != nil {
		return fmt.Errorf("storing comment: %w", err)
	}
	if !inserted {
		return nil
	}

	s.logger.Info("stored comment", "comment_id", comment.ID, "author", comment.AuthorUsername)

	// A child reply arriving marks its parent as handled. Best effort: the
	// parent may not be stored, and a miss must not fail the ingest.
	if comment.IsReply() {
		if err := s.comments.MarkReplied(ctx, comment.ParentID, time.Now()); err != nil {
			s.logger.Warn("failed to mark parent comment replied", "parent_id", comment.ParentID, "error", err)
		}
	}

	return nil
}

// SendReplyInput represents input for replying to a comment
type SendReplyInput struct {
	CommentID   string
	Text        string
	AccessToken string
}

// SendReplyOutput represents output from replying to a comment
type SendReplyOutput struct {
	ReplyID string
}

// SendReply posts a public reply to a stored comment, persists the reply
// record, and marks the comment replied. Provider errors surface verbatim;
// no fallback chain applies to public replies.
func (s *Service) SendReply(ctx context.Context, in SendReplyInput) (*SendReplyOutput, error) {
	if err := entity.ValidateReplyText(in.Text); err != nil {
		return nil, err
	}

	comment, err := s.comments.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, fmt.Errorf("loading comment: %w", err)
	}
	if comment == nil {
		return nil, entity.ErrCommentNotFound
	}

	replyID, err := s.ig.ReplyToComment(ctx, in.CommentID, in.AccessToken, in.Text)
	if err != nil {
		return nil, fmt.Errorf("sending reply: %w", err)
	}

	now := time.Now()
	if err := s.replies.Insert(ctx, &entity.Reply{
		ReplyID:   replyID,
		CommentID: in.CommentID,
		Text:      in.Text,
		SentAt:    now,
	}); err != nil {
		return nil, fmt.Errorf("storing reply: %w", err)
	}

	if err := s.comments.MarkReplied(ctx, in.CommentID, now); err != nil {
		return nil, fmt.Errorf("marking comment replied: %w", err)
	}

	s.logger.Info("reply sent", "comment_id", in.CommentID, "reply_id", replyID)

	return &SendReplyOutput{ReplyID: replyID}, nil
}

// GetCommentsInput represents input for listing comments
type GetCommentsInput struct {
	AccountID string
	MediaID   string // optional: filter by media
	Limit     int
	Offset    int
}

// GetCommentsOutput represents output from listing comments
type GetCommentsOutput struct {
	Comments []entity.Comment
	Total    int64
}

// GetComments lists stored comments for the dashboard
func (s *Service) GetComments(ctx context.Context, in GetCommentsInput) (*GetCommentsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		comments []entity.Comment
		err      error
	)
	if in.MediaID != "" {
		comments, err = s.comments.GetByMediaID(ctx, in.MediaID, limit, in.Offset)
	} else {
		comments, err = s.comments.GetByAccountID(ctx, in.AccountID, limit, in.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("getting comments: %w", err)
	}

	total, err := s.comments.Count(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("counting comments: %w", err)
	}

	return &GetCommentsOutput{Comments: comments, Total: total}, nil
}
