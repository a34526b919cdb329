package instagram

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Channel identifies the delivery channel a message went out on
type Channel string

const (
	ChannelStandard              Channel = "standard"
	ChannelPrivateReplyPrimary   Channel = "private_reply_primary"
	ChannelPrivateReplySecondary Channel = "private_reply_secondary"
)

// MaxMessageLength is the maximum length of an outbound direct message
const MaxMessageLength = 1000

// Validation errors, rejected before any network call
var (
	ErrEmptyRecipient = errors.New("recipient id is required")
	ErrEmptyMessage   = errors.New("message text is required")
	ErrMessageTooLong = fmt.Errorf("message exceeds maximum length of %d characters", MaxMessageLength)
)

// Attempt records the outcome of one delivery channel
type Attempt struct {
	Channel Channel `json:"channel"`
	Error   string  `json:"error"`
}

// DeliveryError aggregates the diagnostics of every channel attempted, so the
// caller can tell "all channels rejected it" apart from "only one was tried".
type DeliveryError struct {
	Attempts []Attempt
}

func (e *DeliveryError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %s", a.Channel, a.Error)
	}
	return "message delivery failed on all channels: " + strings.Join(parts, "; ")
}

// Sender delivers direct messages through an ordered chain of channels.
// The primary client talks to the messaging platform's own host; the
// secondary client talks to the underlying platform's alternate host, which
// exposes the same private-reply capability with different reliability.
type Sender struct {
	primary   *Client
	secondary *Client
}

// NewSender creates a new delivery chain over the two provider hosts
func NewSender(primary, secondary *Client) *Sender {
	return &Sender{primary: primary, secondary: secondary}
}

// SendInput represents input for sending a direct message
type SendInput struct {
	RecipientID string
	Text        string
	CommentID   string // optional: enables the private-reply fallback path
	AccessToken string
}

// SendOutput represents a successful delivery
type SendOutput struct {
	Channel   Channel
	MessageID string
}

// SendDirectMessage attempts delivery through the ordered channel chain:
//
//  1. standard send
//  2. on a window-closed rejection, private reply on the primary host
//     (requires CommentID)
//  3. on failure, private reply on the secondary host
//
// Terminal failures abort the chain and surface the original error. The chain
// is strictly sequential and runs exactly once per call.
func (s *Sender) SendDirectMessage(ctx context.Context, in SendInput) (*SendOutput, error) {
	if in.RecipientID == "" {
		return nil, ErrEmptyRecipient
	}
	if in.Text == "" {
		return nil, ErrEmptyMessage
	}
	if len(in.Text) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}

	out, err := s.primary.SendMessage(ctx, SendMessageInput{
		RecipientID: in.RecipientID,
		AccessToken: in.AccessToken,
		Text:        in.Text,
	})
	if err == nil {
		return &SendOutput{Channel: ChannelStandard, MessageID: out.MessageID}, nil
	}

	if Classify(err) == ClassTerminal {
		return nil, fmt.Errorf("standard send: %w", err)
	}

	attempts := []Attempt{{Channel: ChannelStandard, Error: err.Error()}}

	// Window closed but nothing to anchor a private reply on
	if in.CommentID == "" {
		return nil, &DeliveryError{Attempts: attempts}
	}

	replyIn := SendPrivateReplyInput{
		CommentID:   in.CommentID,
		AccessToken: in.AccessToken,
		Text:        in.Text,
	}

	out, err = s.primary.SendPrivateReply(ctx, replyIn)
	if err == nil {
		return &SendOutput{Channel: ChannelPrivateReplyPrimary, MessageID: out.MessageID}, nil
	}
	attempts = append(attempts, Attempt{Channel: ChannelPrivateReplyPrimary, Error: err.Error()})

	out, err = s.secondary.SendPrivateReply(ctx, replyIn)
	if err == nil {
		return &SendOutput{Channel: ChannelPrivateReplySecondary, MessageID: out.MessageID}, nil
	}
	attempts = append(attempts, Attempt{Channel: ChannelPrivateReplySecondary, Error: err.Error()})

	return nil, &DeliveryError{Attempts: attempts}
}
