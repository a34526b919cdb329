package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vadim/insta-inbox/internal/domain/direct/dao"
	"github.com/vadim/insta-inbox/internal/domain/direct/entity"
)

type fakeMessageRepo struct {
	messages map[string]*entity.Message
	order    []string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*entity.Message)}
}

func (r *fakeMessageRepo) Insert(ctx context.Context, msg *entity.Message) (bool, error) {
	if _, ok := r.messages[msg.ID]; ok {
		return false, nil
	}
	copied := *msg
	r.messages[msg.ID] = &copied
	r.order = append(r.order, msg.ID)
	return true, nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	copied := *msg
	return &copied, nil
}

func (r *fakeMessageRepo) GetByParticipant(ctx context.Context, accountID, participantID string, limit, offset int) ([]entity.Message, error) {
	var out []entity.Message
	for i := len(r.order) - 1; i >= 0; i-- {
		msg := r.messages[r.order[i]]
		if msg.AccountID == accountID && msg.ParticipantID == participantID {
			out = append(out, *msg)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, accountID, participantID string) (int64, error) {
	var count int64
	for _, msg := range r.messages {
		if msg.AccountID == accountID && msg.ParticipantID == participantID {
			count++
		}
	}
	return count, nil
}

type fakeConversationRepo struct {
	conversations map[string]*entity.Conversation
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]*entity.Conversation)}
}

func convKey(accountID, participantID string) string {
	return accountID + "/" + participantID
}

func (r *fakeConversationRepo) ApplyMessage(ctx context.Context, msg *entity.Message) error {
	key := convKey(msg.AccountID, msg.ParticipantID)
	conv, ok := r.conversations[key]
	if !ok {
		conv = &entity.Conversation{
			AccountID:     msg.AccountID,
			ParticipantID: msg.ParticipantID,
			CreatedAt:     time.Now(),
		}
		r.conversations[key] = conv
	}

	if msg.ParticipantUsername != "" {
		conv.ParticipantUsername = msg.ParticipantUsername
	}
	ts := msg.Timestamp
	conv.LastMessageText = msg.Text
	conv.LastMessageAt = &ts
	conv.LastMessageIsFromMe = msg.FromMe
	if msg.FromMe {
		conv.UnreadCount = 0
	} else {
		conv.UnreadCount++
	}
	conv.UpdatedAt = time.Now()
	return nil
}

func (r *fakeConversationRepo) Get(ctx context.Context, accountID, participantID string) (*entity.Conversation, error) {
	conv, ok := r.conversations[convKey(accountID, participantID)]
	if !ok {
		return nil, nil
	}
	copied := *conv
	return &copied, nil
}

func (r *fakeConversationRepo) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]entity.Conversation, error) {
	var out []entity.Conversation
	for _, conv := range r.conversations {
		if conv.AccountID == accountID {
			out = append(out, *conv)
		}
	}
	return out, nil
}

func (r *fakeConversationRepo) Count(ctx context.Context, accountID string) (int64, error) {
	var count int64
	for _, conv := range r.conversations {
		if conv.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

type fakeSentLog struct {
	entries []dao.SentLogEntry
}

func (l *fakeSentLog) Append(ctx context.Context, entry *dao.SentLogEntry) error {
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *fakeSentLog) GetByRecipient(ctx context.Context, recipientID string, limit int) ([]dao.SentLogEntry, error) {
	var out []dao.SentLogEntry
	for _, e := range l.entries {
		if e.RecipientID == recipientID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeSender struct {
	result *SendResult
	err    error
	calls  []SendAttempt
}

func (s *fakeSender) SendDirectMessage(ctx context.Context, in SendAttempt) (*SendResult, error) {
	s.calls = append(s.calls, in)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type fakeProfiles struct {
	usernames map[string]string
	err       error
}

func (p *fakeProfiles) GetUsername(ctx context.Context, userID, accessToken string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.usernames[userID], nil
}

type testEnv struct {
	svc      *Service
	sender   *fakeSender
	msgRepo  *fakeMessageRepo
	convRepo *fakeConversationRepo
	sentLog  *fakeSentLog
}

func newTestEnv() *testEnv {
	sender := &fakeSender{result: &SendResult{Channel: "standard", MessageID: "mid-sent"}}
	msgRepo := newFakeMessageRepo()
	convRepo := newFakeConversationRepo()
	sentLog := &fakeSentLog{}
	profiles := &fakeProfiles{usernames: map[string]string{"user-1": "alice"}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		svc:      New(sender, msgRepo, convRepo, sentLog, profiles, nil, logger),
		sender:   sender,
		msgRepo:  msgRepo,
		convRepo: convRepo,
		sentLog:  sentLog,
	}
}

func TestIngestMessageIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	in := IngestMessageInput{
		AccountID:     "acct-1",
		MessageID:     "mid-1",
		Text:          "hi",
		ParticipantID: "user-1",
		Timestamp:     time.Now(),
	}

	if err := env.svc.IngestMessage(ctx, in); err != nil {
		t.Fatalf("first IngestMessage() error = %v", err)
	}
	if err := env.svc.IngestMessage(ctx, in); err != nil {
		t.Fatalf("second IngestMessage() error = %v", err)
	}

	if got := len(env.msgRepo.messages); got != 1 {
		t.Errorf("stored messages = %d, want 1", got)
	}

	conv, _ := env.convRepo.Get(ctx, "acct-1", "user-1")
	if conv == nil {
		t.Fatal("conversation was not created")
	}
	if conv.UnreadCount != 1 {
		t.Errorf("unread count = %d, want 1 (duplicate must not double-count)", conv.UnreadCount)
	}
}

func TestIngestMessageUnreadCountAndReset(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	for i, id := range []string{"mid-1", "mid-2", "mid-3"} {
		err := env.svc.IngestMessage(ctx, IngestMessageInput{
			AccountID:     "acct-1",
			MessageID:     id,
			Text:          "inbound",
			ParticipantID: "user-1",
			Timestamp:     time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("IngestMessage(%s) error = %v", id, err)
		}
	}

	conv, _ := env.convRepo.Get(ctx, "acct-1", "user-1")
	if conv.UnreadCount != 3 {
		t.Fatalf("unread count = %d, want 3", conv.UnreadCount)
	}

	_, err := env.svc.SendMessage(ctx, SendMessageInput{
		AccountID:   "acct-1",
		RecipientID: "user-1",
		Text:        "hello back",
		AccessToken: "token",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	conv, _ = env.convRepo.Get(ctx, "acct-1", "user-1")
	if conv.UnreadCount != 0 {
		t.Errorf("unread count after operator send = %d, want 0", conv.UnreadCount)
	}
	if !conv.LastMessageIsFromMe {
		t.Error("last message should be marked as operator-sent")
	}
}

func TestIngestMessageStoresEcho(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.svc.IngestMessage(ctx, IngestMessageInput{
		AccountID:     "acct-1",
		MessageID:     "mid-echo",
		Text:          "sent elsewhere",
		ParticipantID: "user-1",
		FromMe:        true,
		Timestamp:     time.Now(),
	})
	if err != nil {
		t.Fatalf("IngestMessage() error = %v", err)
	}

	msg, _ := env.msgRepo.GetByID(ctx, "mid-echo")
	if msg == nil {
		t.Fatal("echo was not stored")
	}
	if !msg.FromMe {
		t.Error("echo must be stored with FromMe = true")
	}

	conv, _ := env.convRepo.Get(ctx, "acct-1", "user-1")
	if conv.UnreadCount != 0 {
		t.Errorf("unread count = %d, want 0 for an operator echo", conv.UnreadCount)
	}
}

func TestIngestMessageUsernameBackfill(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.svc.IngestMessage(ctx, IngestMessageInput{
		AccountID:     "acct-1",
		MessageID:     "mid-1",
		Text:          "hi",
		ParticipantID: "user-1",
		Timestamp:     time.Now(),
		AccessToken:   "token",
	})
	if err != nil {
		t.Fatalf("IngestMessage() error = %v", err)
	}

	msg, _ := env.msgRepo.GetByID(ctx, "mid-1")
	if msg.ParticipantUsername != "alice" {
		t.Errorf("participant username = %q, want alice", msg.ParticipantUsername)
	}
}

func TestIngestMessageBackfillFailureDoesNotBlock(t *testing.T) {
	env := newTestEnv()
	env.svc.profiles = &fakeProfiles{err: errors.New("profile lookup failed")}
	ctx := context.Background()

	err := env.svc.IngestMessage(ctx, IngestMessageInput{
		AccountID:     "acct-1",
		MessageID:     "mid-1",
		Text:          "hi",
		ParticipantID: "user-1",
		Timestamp:     time.Now(),
		AccessToken:   "token",
	})
	if err != nil {
		t.Fatalf("IngestMessage() error = %v, want nil despite backfill failure", err)
	}

	msg, _ := env.msgRepo.GetByID(ctx, "mid-1")
	if msg == nil {
		t.Fatal("message was not stored")
	}
	if msg.ParticipantUsername != "" {
		t.Errorf("participant username = %q, want empty after failed lookup", msg.ParticipantUsername)
	}
}

func TestIngestMessageSkipsIncompleteEvents(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if err := env.svc.IngestMessage(ctx, IngestMessageInput{AccountID: "acct-1", ParticipantID: "user-1"}); err != nil {
		t.Fatalf("IngestMessage() without message id error = %v", err)
	}
	if err := env.svc.IngestMessage(ctx, IngestMessageInput{AccountID: "acct-1", MessageID: "mid-1"}); err != nil {
		t.Fatalf("IngestMessage() without participant id error = %v", err)
	}

	if got := len(env.msgRepo.messages); got != 0 {
		t.Errorf("stored messages = %d, want 0", got)
	}
}

func TestSendMessageRecordsOutcome(t *testing.T) {
	env := newTestEnv()
	env.sender.result = &SendResult{Channel: "private_reply_primary", MessageID: "mid-pr"}
	ctx := context.Background()

	out, err := env.svc.SendMessage(ctx, SendMessageInput{
		AccountID:   "acct-1",
		RecipientID: "user-1",
		Text:        "hello",
		CommentID:   "comment-1",
		AccessToken: "token",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	if out.Channel != "private_reply_primary" {
		t.Errorf("channel = %q, want private_reply_primary", out.Channel)
	}

	msg, _ := env.msgRepo.GetByID(ctx, "mid-pr")
	if msg == nil {
		t.Fatal("sent message was not stored")
	}
	if !msg.FromMe {
		t.Error("sent message must be stored with FromMe = true")
	}
	if msg.Channel != "private_reply_primary" {
		t.Errorf("stored channel = %q, want private_reply_primary", msg.Channel)
	}

	if len(env.sentLog.entries) != 1 {
		t.Fatalf("sent log entries = %d, want 1", len(env.sentLog.entries))
	}
	entry := env.sentLog.entries[0]
	if entry.Channel != "private_reply_primary" || entry.CommentID != "comment-1" {
		t.Errorf("sent log entry = %+v, want private_reply_primary anchored to comment-1", entry)
	}
}

func TestSendMessageDeliveryFailure(t *testing.T) {
	env := newTestEnv()
	wantErr := errors.New("all channels failed")
	env.sender.err = wantErr
	ctx := context.Background()

	_, err := env.svc.SendMessage(ctx, SendMessageInput{
		AccountID:   "acct-1",
		RecipientID: "user-1",
		Text:        "hello",
		AccessToken: "token",
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("SendMessage() error = %v, want %v", err, wantErr)
	}

	if got := len(env.msgRepo.messages); got != 0 {
		t.Errorf("stored messages = %d, want 0 after failed delivery", got)
	}
	if got := len(env.sentLog.entries); got != 0 {
		t.Errorf("sent log entries = %d, want 0 after failed delivery", got)
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.svc.SendMessage(ctx, SendMessageInput{AccountID: "acct-1", Text: "hi"}); !errors.Is(err, entity.ErrInvalidRecipient) {
		t.Errorf("error = %v, want ErrInvalidRecipient", err)
	}
	if _, err := env.svc.SendMessage(ctx, SendMessageInput{AccountID: "acct-1", RecipientID: "user-1"}); !errors.Is(err, entity.ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
	if len(env.sender.calls) != 0 {
		t.Errorf("sender calls = %d, want 0 for rejected input", len(env.sender.calls))
	}
}

func TestConversationRoundTrip(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.svc.IngestMessage(ctx, IngestMessageInput{
		AccountID:     "acct-1",
		MessageID:     "mid-in",
		Text:          "hi",
		ParticipantID: "user-1",
		Timestamp:     time.Now(),
	})
	if err != nil {
		t.Fatalf("IngestMessage() error = %v", err)
	}

	_, err = env.svc.SendMessage(ctx, SendMessageInput{
		AccountID:   "acct-1",
		RecipientID: "user-1",
		Text:        "hello back",
		AccessToken: "token",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	msgs, err := env.svc.GetMessages(ctx, GetMessagesInput{AccountID: "acct-1", ParticipantID: "user-1"})
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(msgs.Messages) != 2 {
		t.Fatalf("thread length = %d, want 2", len(msgs.Messages))
	}

	convs, err := env.svc.GetConversations(ctx, GetConversationsInput{AccountID: "acct-1"})
	if err != nil {
		t.Fatalf("GetConversations() error = %v", err)
	}
	if len(convs.Conversations) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs.Conversations))
	}

	conv := convs.Conversations[0]
	if conv.LastMessageText != "hello back" {
		t.Errorf("last message = %q, want the operator reply", conv.LastMessageText)
	}
	if conv.UnreadCount != 0 {
		t.Errorf("unread count = %d, want 0 after reply", conv.UnreadCount)
	}
}
