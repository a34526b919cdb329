package entity

import (
	"errors"
	"time"
)

// Comment represents an Instagram comment received via webhook
type Comment struct {
	ID               string     `json:"id"`
	MediaID          string     `json:"media_id"`
	MediaProductType string     `json:"media_product_type,omitempty"`
	AuthorID         string     `json:"author_id,omitempty"`
	AuthorUsername   string     `json:"author_username,omitempty"`
	Text             string     `json:"text"`
	ParentID         string     `json:"parent_id,omitempty"` // non-empty means this is a reply
	AccountID        string     `json:"account_id"`
	Replied          bool       `json:"replied"`
	RepliedAt        *time.Time `json:"replied_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ReceivedAt       time.Time  `json:"received_at"`
}

// IsReply reports whether the comment replies to another comment
func (c *Comment) IsReply() bool {
	return c.ParentID != ""
}

// Reply represents a public reply the operator sent to a comment
type Reply struct {
	ReplyID   string    `json:"reply_id"`
	CommentID string    `json:"comment_id"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

// Domain errors
var (
	ErrCommentNotFound  = errors.New("comment not found")
	ErrEmptyReplyText   = errors.New("reply text cannot be empty")
	ErrReplyTextTooLong = errors.New("reply text exceeds maximum length")
)

// MaxReplyLength is the maximum length of a comment reply
const MaxReplyLength = 8000

// ValidateReplyText validates the text for a reply
func ValidateReplyText(text string) error {
	if text == "" {
		return ErrEmptyReplyText
	}
	if len(text) > MaxReplyLength {
		return ErrReplyTextTooLong
	}
	return nil
}
