package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/vadim/insta-inbox/internal/domain/comment/entity"
	"github.com/vadim/insta-inbox/internal/domain/comment/service"
)

// AccountProvider provides credentials for an account
type AccountProvider interface {
	GetAccessToken(ctx context.Context, accountID string) (string, error)
}

// CommentService defines the interface for the comment service
type CommentService interface {
	IngestComment(ctx context.Context, in service.IngestCommentInput) error
	SendReply(ctx context.Context, in service.SendReplyInput) (*service.SendReplyOutput, error)
	GetComments(ctx context.Context, in service.GetCommentsInput) (*service.GetCommentsOutput, error)
}

// Policy handles comment operations with account credential resolution
type Policy struct {
	svc      CommentService
	accounts AccountProvider
}

// New creates a new comment policy
func New(svc CommentService, accounts AccountProvider) *Policy {
	return &Policy{
		svc:      svc,
		accounts: accounts,
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

// IngestComment stores an inbound comment event
func (p *Policy) IngestComment(ctx context.Context, in IngestCommentInput) error {
	return p.svc.IngestComment(ctx, service.IngestCommentInput{
		AccountID:        in.AccountID,
		CommentID:        in.CommentID,
		Text:             in.Text,
		MediaID:          in.MediaID,
		MediaProductType: in.MediaProductType,
		AuthorID:         in.AuthorID,
		AuthorUsername:   in.AuthorUsername,
		ParentID:         in.ParentID,
		CreatedAt:        in.CreatedAt,
	})
}

// SendReplyInput represents input for replying to a comment
type SendReplyInput struct {
	AccountID string
	CommentID string
	Message   string
}

// SendReplyOutput represents output from replying to a comment
type SendReplyOutput struct {
	ReplyID string
}

// SendReply posts a public reply to a comment
func (p *Policy) SendReply(ctx context.Context, in SendReplyInput) (*SendReplyOutput, error) {
	accessToken, err := p.accounts.GetAccessToken(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	result, err := p.svc.SendReply(ctx, service.SendReplyInput{
		CommentID:   in.CommentID,
		Text:        in.Message,
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, err
	}

	return &SendReplyOutput{ReplyID: result.ReplyID}, nil
}

// GetCommentsInput represents input for listing comments
type GetCommentsInput struct {
	AccountID string
	MediaID   string
	Limit     int
	Offset    int
}

// GetCommentsOutput represents output from listing comments
type GetCommentsOutput struct {
	Comments []entity.Comment
	Total    int64
}

// GetComments lists stored comments
func (p *Policy) GetComments(ctx context.Context, in GetCommentsInput) (*GetCommentsOutput, error) {
	result, err := p.svc.GetComments(ctx, service.GetCommentsInput{
		AccountID: in.AccountID,
		MediaID:   in.MediaID,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &GetCommentsOutput{Comments: result.Comments, Total: result.Total}, nil
}
