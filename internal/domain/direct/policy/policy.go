package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/vadim/insta-inbox/internal/domain/direct/entity"
	"github.com/vadim/insta-inbox/internal/domain/direct/service"
)

// AccountProvider provides credentials for an account
type AccountProvider interface {
	GetAccessToken(ctx context.Context, accountID string) (string, error)
}

// DirectService defines the interface for the direct service
type DirectService interface {
	IngestMessage(ctx context.Context, in service.IngestMessageInput) error
	SendMessage(ctx context.Context, in service.SendMessageInput) (*service.SendMessageOutput, error)
	GetConversations(ctx context.Context, in service.GetConversationsInput) (*service.GetConversationsOutput, error)
	GetMessages(ctx context.Context, in service.GetMessagesInput) (*service.GetMessagesOutput, error)
}

// Policy handles direct message operations with account credential resolution
type Policy struct {
	svc      DirectService
	accounts AccountProvider
}

// New creates a new direct policy
func New(svc DirectService, accounts AccountProvider) *Policy {
	return &Policy{
		svc:      svc,
		accounts: accounts,
	}
}

// IngestMessageInput represents a normalized messaging event
type IngestMessageInput struct {
	AccountID      string
	MessageID      string
	Text           string
	ParticipantID  string
	FromMe         bool
	AttachmentURL  string
	AttachmentType string
	Timestamp      time.Time
}

// IngestMessage stores an inbound messaging event
func (p *Policy) IngestMessage(ctx context.Context, in IngestMessageInput) error {
	// Credentials are only needed for the optional username backfill; a
	// missing token must not block ingestion.
	accessToken, err := p.accounts.GetAccessToken(ctx, in.AccountID)
	if err != nil {
		accessToken = ""
	}

	return p.svc.IngestMessage(ctx, service.IngestMessageInput{
		AccountID:      in.AccountID,
		MessageID:      in.MessageID,
		Text:           in.Text,
		ParticipantID:  in.ParticipantID,
		FromMe:         in.FromMe,
		AttachmentURL:  in.AttachmentURL,
		AttachmentType: in.AttachmentType,
		Timestamp:      in.Timestamp,
		AccessToken:    accessToken,
	})
}

// SendMessageInput represents input for sending a message
type SendMessageInput struct {
	AccountID   string
	RecipientID string
	Message     string
	CommentID   string
}

// SendMessageOutput represents output from sending a message
type SendMessageOutput struct {
	MessageID string
	Channel   string
}

// SendMessage sends a direct message through the delivery chain
func (p *Policy) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	accessToken, err := p.accounts.GetAccessToken(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	result, err := p.svc.SendMessage(ctx, service.SendMessageInput{
		AccountID:   in.AccountID,
		RecipientID: in.RecipientID,
		Text:        in.Message,
		CommentID:   in.CommentID,
		AccessToken: accessToken,
	})
	if err != nil {
		return nil, err
	}

	return &SendMessageOutput{MessageID: result.MessageID, Channel: result.Channel}, nil
}

// GetConversationsInput represents input for listing conversations
type GetConversationsInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// GetConversationsOutput represents output from listing conversations
type GetConversationsOutput struct {
	Conversations []entity.Conversation
	Total         int64
	HasMore       bool
}

// GetConversations lists conversations for an account
func (p *Policy) GetConversations(ctx context.Context, in GetConversationsInput) (*GetConversationsOutput, error) {
	result, err := p.svc.GetConversations(ctx, service.GetConversationsInput{
		AccountID: in.AccountID,
		Limit:     in.Limit,
		Offset:    in.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &GetConversationsOutput{
		Conversations: result.Conversations,
		Total:         result.Total,
		HasMore:       result.HasMore,
	}, nil
}

// GetMessagesInput represents input for listing a thread
type GetMessagesInput struct {
	AccountID     string
	ParticipantID string
	Limit         int
	Offset        int
}

// GetMessagesOutput represents output from listing a thread
type GetMessagesOutput struct {
	Messages []entity.Message
	Total    int64
	HasMore  bool
}

// GetMessages lists the thread with one participant
func (p *Policy) GetMessages(ctx context.Context, in GetMessagesInput) (*GetMessagesOutput, error) {
	result, err := p.svc.GetMessages(ctx, service.GetMessagesInput{
		AccountID:     in.AccountID,
		ParticipantID: in.ParticipantID,
		Limit:         in.Limit,
		Offset:        in.Offset,
	})
	if err != nil {
		return nil, err
	}

	return &GetMessagesOutput{
		Messages: result.Messages,
		Total:    result.Total,
		HasMore:  result.HasMore,
	}, nil
}
