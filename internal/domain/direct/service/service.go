package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vadim/insta-inbox/internal/domain/direct/dao"
	"github.com/vadim/insta-inbox/internal/domain/direct/entity"
)

// MessageSender delivers a direct message through the ordered channel chain
type MessageSender interface {
	SendDirectMessage(ctx context.Context, in SendAttempt) (*SendResult, error)
}

// SendAttempt is the delivery request handed to the sender
type SendAttempt struct {
	RecipientID string
	Text        string
	CommentID   string
	AccessToken string
}

// SendResult reports which channel delivered and the provider message id
type SendResult struct {
	Channel   string
	MessageID string
}

// ProfileResolver looks up a participant's username, used for best-effort
// display-name backfill during ingestion
type ProfileResolver interface {
	GetUsername(ctx context.Context, userID, accessToken string) (string, error)
}

// AttachmentArchiver mirrors an attachment URL into durable storage and
// returns the archived URL
type AttachmentArchiver interface {
	Archive(ctx context.Context, srcURL string) (string, error)
}

// backfillTimeout bounds the optional enrichment calls so they can never
// stall ingestion
const backfillTimeout = 5 * time.Second

// Service handles direct message ingestion and delivery
type Service struct {
	sender   MessageSender
	msgRepo  dao.MessageRepository
	convRepo dao.ConversationRepository
	sentLog  dao.SentLogRepository
	profiles ProfileResolver
	archiver AttachmentArchiver // optional
	logger   *slog.Logger
}

// New creates a new direct message service
func New(
	sender MessageSender,
	msgRepo dao.MessageRepository,
	convRepo dao.ConversationRepository,
	sentLog dao.SentLogRepository,
	profiles ProfileResolver,
	archiver AttachmentArchiver,
	logger *slog.Logger,
) *Service {
	return &Service{
		sender:   sender,
		msgRepo:  msgRepo,
		convRepo: convRepo,
		sentLog:  sentLog,
		profiles: profiles,
		archiver: archiver,
		logger:   logger,
	}
}

// IngestMessageInput represents a normalized inbound messaging event
type IngestMessageInput struct {
	AccountID      string
	MessageID      string
	Text           string
	ParticipantID  string
	FromMe         bool // echo of an operator-sent message
	AttachmentURL  string
	AttachmentType string
	Timestamp      time.Time
	AccessToken    string
}

// IngestMessage stores a messaging event and folds it into its conversation.
// Echoes are stored too, so the thread stays complete even when a send
// happened outside this service; the idempotent insert makes an echo and the
// dispatcher's own record of the same message converge to one row.
func (s *Service) IngestMessage(ctx context.Context, in IngestMessageInput) error {
	if in.MessageID == "" || in.ParticipantID == "" {
		return nil
	}

	existing, err := s.msgRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return fmt.Errorf("checking message existence: %w", err)
	}
	if existing != nil {
		s.logger.Debug("message already stored, skipping", "message_id", in.MessageID)
		return nil
	}

	msg := &entity.Message{
		ID:             in.MessageID,
		Text:           in.Text,
		AttachmentURL:  in.AttachmentURL,
		AttachmentType: in.AttachmentType,
		FromMe:         in.FromMe,
		ParticipantID:  in.ParticipantID,
		AccountID:      in.AccountID,
		Timestamp:      in.Timestamp,
		ReceivedAt:     time.Now(),
	}

	// Best-effort enrichment: never blocks the write
	msg.ParticipantUsername = s.backfillUsername(ctx, in.ParticipantID, in.AccessToken)
	if in.AttachmentURL != "" && s.archiver != nil {
		msg.ArchivedURL = s.archiveAttachment(ctx, in.AttachmentURL)
	}

	inserted, err := s.msgRepo.Insert(ctx, msg)
	if err != nil {
		return fmt.Errorf("storing message: %w", err)
	}
	if !inserted {
		// Lost a race with a concurrent delivery of the same event
		return nil
	}

	if err := s.convRepo.ApplyMessage(ctx, msg); err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}

	s.logger.Info("stored direct message",
		"message_id", msg.ID,
		"participant_id", msg.ParticipantID,
		"from_me", msg.FromMe,
	)
	return nil
}

// backfillUsername fetches the participant's display name, best effort
func (s *Service) backfillUsername(ctx context.Context, participantID, accessToken string) string {
	if s.profiles == nil || accessToken == "" {
		return ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, backfillTimeout)
	defer cancel()

	username, err := s.profiles.GetUsername(lookupCtx, participantID, accessToken)
	if err != nil {
		s.logger.Warn("username backfill failed", "participant_id", participantID, "error", err)
		return ""
	}
	return username
}

// archiveAttachment mirrors the attachment into storage, best effort
func (s *Service) archiveAttachment(ctx context.Context, srcURL string) string {
	archiveCtx, cancel := context.WithTimeout(ctx, backfillTimeout)
	defer cancel()

	archived, err := s.archiver.Archive(archiveCtx, srcURL)
	if err != nil {
		s.logger.Warn("attachment archive failed", "url", srcURL, "error", err)
		return ""
	}
	return archived
}

// SendMessageInput represents input for sending a direct message
type SendMessageInput struct {
	AccountID   string
	RecipientID string
	Text        string
	CommentID   string // optional: enables the private-reply fallback
	AccessToken string
}

// SendMessageOutput represents the outcome of a delivered message
type SendMessageOutput struct {
	MessageID string
	Channel   string
}

// SendMessage delivers a message through the fallback chain, then records the
// outcome: a dm_messages row tagged with the channel used, a sent-log entry,
// and the conversation fold (which resets the unread counter).
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	if in.RecipientID == "" {
		return nil, entity.ErrInvalidRecipient
	}
	if err := entity.ValidateMessageText(in.Text); err != nil {
		return nil, err
	}

	result, err := s.sender.SendDirectMessage(ctx, SendAttempt{
		RecipientID: in.RecipientID,
		Text:        in.Text,
		CommentID:   in.CommentID,
		AccessToken: in.AccessToken,
	})
	if err != nil {
		return nil, err
	}

	msg := &entity.Message{
		ID:            result.MessageID,
		Text:          in.Text,
		FromMe:        true,
		ParticipantID: in.RecipientID,
		AccountID:     in.AccountID,
		Channel:       result.Channel,
		Timestamp:     time.Now(),
		ReceivedAt:    time.Now(),
	}

	// The message is already delivered; persistence is best-effort from here
	inserted, err := s.msgRepo.Insert(ctx, msg)
	if err != nil {
		s.logger.Error("failed to store sent message", "message_id", msg.ID, "error", err)
	} else if inserted {
		if err := s.convRepo.ApplyMessage(ctx, msg); err != nil {
			s.logger.Error("failed to update conversation after send", "message_id", msg.ID, "error", err)
		}
	}

	if err := s.sentLog.Append(ctx, &dao.SentLogEntry{
		MessageID:   result.MessageID,
		RecipientID: in.RecipientID,
		CommentID:   in.CommentID,
		Channel:     result.Channel,
		Text:        in.Text,
	}); err != nil {
		s.logger.Error("failed to append sent log", "message_id", msg.ID, "error", err)
	}

	s.logger.Info("direct message sent",
		"message_id", result.MessageID,
		"recipient_id", in.RecipientID,
		"channel", result.Channel,
	)

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

// GetConversations lists conversations for the dashboard, most recent first
func (s *Service) GetConversations(ctx context.Context, in GetConversationsInput) (*GetConversationsOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}

	conversations, err := s.convRepo.GetByAccountID(ctx, in.AccountID, limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("getting conversations: %w", err)
	}

	total, err := s.convRepo.Count(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("counting conversations: %w", err)
	}

	return &GetConversationsOutput{
		Conversations: conversations,
		Total:         total,
		HasMore:       int64(in.Offset+len(conversations)) < total,
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

// GetMessages lists the thread with one participant, most recent first
func (s *Service) GetMessages(ctx context.Context, in GetMessagesInput) (*GetMessagesOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}

	messages, err := s.msgRepo.GetByParticipant(ctx, in.AccountID, in.ParticipantID, limit, in.Offset)
	if err != nil {
		return nil, fmt.Errorf("getting messages: %w", err)
	}

	total, err := s.msgRepo.Count(ctx, in.AccountID, in.ParticipantID)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	return &GetMessagesOutput{
		Messages: messages,
		Total:    total,
		HasMore:  int64(in.Offset+len(messages)) < total,
	}, nil
}
