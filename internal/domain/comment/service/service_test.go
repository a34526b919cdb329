package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/vadim/insta-inbox/internal/domain/comment/entity"
)

type fakeCommentRepo struct {
	comments map[string]*entity.Comment
}

func newFakeCommentRepo() *fakeCommentRepo {
	return &fakeCommentRepo{comments: make(map[string]*entity.Comment)}
}

func (r *fakeCommentRepo) Insert(ctx context.Context, comment *entity.Comment) (bool, error) {
	if _, ok := r.comments[comment.ID]; ok {
		return false, nil
	}
	copied := *comment
	r.comments[comment.ID] = &copied
	return true, nil
}

func (r *fakeCommentRepo) GetByID(ctx context.Context, id string) (*entity.Comment, error) {
	comment, ok := r.comments[id]
	if !ok {
		return nil, nil
	}
	copied := *comment
	return &copied, nil
}

func (r *fakeCommentRepo) MarkReplied(ctx context.Context, id string, at time.Time) error {
	comment, ok := r.comments[id]
	if !ok {
		return nil
	}
	if !comment.Replied {
		comment.Replied = true
		comment.RepliedAt = &at
	}
	return nil
}

func (r *fakeCommentRepo) GetByAccountID(ctx context.Context, accountID string, limit, offset int) ([]entity.Comment, error) {
	var out []entity.Comment
	for _, c := range r.comments {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCommentRepo) GetByMediaID(ctx context.Context, mediaID string, limit, offset int) ([]entity.Comment, error) {
	var out []entity.Comment
	for _, c := range r.comments {
		if c.MediaID == mediaID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *fakeCommentRepo) Count(ctx context.Context, accountID string) (int64, error) {
	var count int64
	for _, c := range r.comments {
		if c.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

type fakeReplyRepo struct {
	replies []entity.Reply
}

func (r *fakeReplyRepo) Insert(ctx context.Context, reply *entity.Reply) error {
	r.replies = append(r.replies, *reply)
	return nil
}

func (r *fakeReplyRepo) GetByCommentID(ctx context.Context, commentID string) ([]entity.Reply, error) {
	var out []entity.Reply
	for _, reply := range r.replies {
		if reply.CommentID == commentID {
			out = append(out, reply)
		}
	}
	return out, nil
}

type fakeInstagram struct {
	replyID string
	err     error
	calls   int
}

func (f *fakeInstagram) ReplyToComment(ctx context.Context, commentID, accessToken, message string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.replyID, nil
}

func newTestService() (*Service, *fakeCommentRepo, *fakeReplyRepo, *fakeInstagram) {
	comments := newFakeCommentRepo()
	replies := &fakeReplyRepo{}
	ig := &fakeInstagram{replyID: "reply-1"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(ig, comments, replies, logger), comments, replies, ig
}

func TestIngestCommentIdempotent(t *testing.T) {
	svc, comments, _, _ := newTestService()
	ctx := context.Background()

	in := IngestCommentInput{
		AccountID:      "acct-1",
		CommentID:      "comment-1",
		Text:           "nice post",
		MediaID:        "media-1",
		AuthorID:       "user-1",
		AuthorUsername: "alice",
	}

	if err := svc.IngestComment(ctx, in); err != nil {
		t.Fatalf("first IngestComment() error = %v", err)
	}
	if err := svc.IngestComment(ctx, in); err != nil {
		t.Fatalf("second IngestComment() error = %v", err)
	}

	if got := len(comments.comments); got != 1 {
		t.Errorf("stored comments = %d, want 1", got)
	}
}

func TestIngestCommentReplyMarksParent(t *testing.T) {
	svc, comments, _, _ := newTestService()
	ctx := context.Background()

	if err := svc.IngestComment(ctx, IngestCommentInput{
		AccountID: "acct-1",
		CommentID: "parent-1",
		Text:      "question?",
	}); err != nil {
		t.Fatalf("IngestComment(parent) error = %v", err)
	}

	if err := svc.IngestComment(ctx, IngestCommentInput{
		AccountID: "acct-1",
		CommentID: "child-1",
		Text:      "answer",
		ParentID:  "parent-1",
	}); err != nil {
		t.Fatalf("IngestComment(child) error = %v", err)
	}

	parent, _ := comments.GetByID(ctx, "parent-1")
	if !parent.Replied {
		t.Error("parent comment should be marked replied after a child arrives")
	}

	child, _ := comments.GetByID(ctx, "child-1")
	if !child.IsReply() {
		t.Error("child comment should report itself as a reply")
	}
}

func TestIngestCommentReplyWithMissingParent(t *testing.T) {
	svc, comments, _, _ := newTestService()
	ctx := context.Background()

	err := svc.IngestComment(ctx, IngestCommentInput{
		AccountID: "acct-1",
		CommentID: "child-1",
		Text:      "orphan reply",
		ParentID:  "never-seen",
	})
	if err != nil {
		t.Fatalf("IngestComment() error = %v, want nil for missing parent", err)
	}

	if _, ok := comments.comments["child-1"]; !ok {
		t.Error("reply should be stored even when its parent is unknown")
	}
}

func TestIngestCommentSkipsEmptyID(t *testing.T) {
	svc, comments, _, _ := newTestService()

	if err := svc.IngestComment(context.Background(), IngestCommentInput{AccountID: "acct-1", Text: "no id"}); err != nil {
		t.Fatalf("IngestComment() error = %v", err)
	}
	if got := len(comments.comments); got != 0 {
		t.Errorf("stored comments = %d, want 0", got)
	}
}

func TestSendReply(t *testing.T) {
	svc, comments, replies, _ := newTestService()
	ctx := context.Background()

	comments.comments["comment-1"] = &entity.Comment{ID: "comment-1", AccountID: "acct-1", Text: "question?"}

	out, err := svc.SendReply(ctx, SendReplyInput{
		CommentID:   "comment-1",
		Text:        "answer",
		AccessToken: "token",
	})
	if err != nil {
		t.Fatalf("SendReply() error = %v", err)
	}
	if out.ReplyID != "reply-1" {
		t.Errorf("reply id = %q, want reply-1", out.ReplyID)
	}

	comment, _ := comments.GetByID(ctx, "comment-1")
	if !comment.Replied {
		t.Error("comment should be marked replied")
	}
	if comment.RepliedAt == nil {
		t.Error("replied_at should be set")
	}

	if len(replies.replies) != 1 {
		t.Fatalf("stored replies = %d, want 1", len(replies.replies))
	}
	if replies.replies[0].CommentID != "comment-1" {
		t.Errorf("reply comment id = %q, want comment-1", replies.replies[0].CommentID)
	}
}

func TestSendReplyCommentNotFound(t *testing.T) {
	svc, _, replies, ig := newTestService()

	_, err := svc.SendReply(context.Background(), SendReplyInput{
		CommentID:   "missing",
		Text:        "answer",
		AccessToken: "token",
	})
	if !errors.Is(err, entity.ErrCommentNotFound) {
		t.Fatalf("error = %v, want ErrCommentNotFound", err)
	}

	if ig.calls != 0 {
		t.Errorf("provider calls = %d, want 0 for an unknown comment", ig.calls)
	}
	if len(replies.replies) != 0 {
		t.Errorf("stored replies = %d, want 0", len(replies.replies))
	}
}

func TestSendReplyValidation(t *testing.T) {
	svc, comments, _, ig := newTestService()
	ctx := context.Background()

	comments.comments["comment-1"] = &entity.Comment{ID: "comment-1", AccountID: "acct-1"}

	if _, err := svc.SendReply(ctx, SendReplyInput{CommentID: "comment-1"}); !errors.Is(err, entity.ErrEmptyReplyText) {
		t.Errorf("error = %v, want ErrEmptyReplyText", err)
	}

	long := strings.Repeat("a", entity.MaxReplyLength+1)
	if _, err := svc.SendReply(ctx, SendReplyInput{CommentID: "comment-1", Text: long}); !errors.Is(err, entity.ErrReplyTextTooLong) {
		t.Errorf("error = %v, want ErrReplyTextTooLong", err)
	}

	if ig.calls != 0 {
		t.Errorf("provider calls = %d, want 0 for rejected input", ig.calls)
	}
}

func TestSendReplyProviderFailure(t *testing.T) {
	svc, comments, replies, ig := newTestService()
	ctx := context.Background()

	comments.comments["comment-1"] = &entity.Comment{ID: "comment-1", AccountID: "acct-1"}
	wantErr := errors.New("provider rejected")
	ig.err = wantErr

	_, err := svc.SendReply(ctx, SendReplyInput{
		CommentID:   "comment-1",
		Text:        "answer",
		AccessToken: "token",
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	comment, _ := comments.GetByID(ctx, "comment-1")
	if comment.Replied {
		t.Error("comment must not be marked replied when the provider rejects")
	}
	if len(replies.replies) != 0 {
		t.Errorf("stored replies = %d, want 0", len(replies.replies))
	}
}

func TestGetCommentsByMedia(t *testing.T) {
	svc, comments, _, _ := newTestService()
	ctx := context.Background()

	comments.comments["c1"] = &entity.Comment{ID: "c1", AccountID: "acct-1", MediaID: "media-1"}
	comments.comments["c2"] = &entity.Comment{ID: "c2", AccountID: "acct-1", MediaID: "media-2"}

	out, err := svc.GetComments(ctx, GetCommentsInput{AccountID: "acct-1", MediaID: "media-1"})
	if err != nil {
		t.Fatalf("GetComments() error = %v", err)
	}
	if len(out.Comments) != 1 {
		t.Fatalf("comments = %d, want 1", len(out.Comments))
	}
	if out.Comments[0].ID != "c1" {
		t.Errorf("comment id = %q, want c1", out.Comments[0].ID)
	}
}
