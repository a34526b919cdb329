package instagram

import "time"

// WebhookObject is the object field value for Instagram events
const WebhookObject = "instagram"

// WebhookFieldComments is the change field carrying comment events
const WebhookFieldComments = "comments"

// WebhookEvent is the envelope of an inbound webhook delivery
type WebhookEvent struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry is one account's batch of events. ID is the owning Instagram
// account id.
type WebhookEntry struct {
	ID        string           `json:"id"`
	Time      int64            `json:"time"`
	Changes   []WebhookChange  `json:"changes"`
	Messaging []MessagingEvent `json:"messaging"`
}

// WebhookChange is a field-change notification (comments)
type WebhookChange struct {
	Field string        `json:"field"`
	Value CommentChange `json:"value"`
}

// CommentChange is the payload of a comment-change event
type CommentChange struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	ParentID string `json:"parent_id,omitempty"`
	Media    struct {
		ID               string `json:"id"`
		MediaProductType string `json:"media_product_type,omitempty"`
	} `json:"media"`
	From struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
}

// IsReply reports whether the comment is a reply to another comment
func (c CommentChange) IsReply() bool {
	return c.ParentID != ""
}

// MessagingEvent is a direct-message event. Message is nil for non-message
// notifications (reads, reactions) delivered on the same stream.
type MessagingEvent struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64           `json:"timestamp"`
	Message   *MessagePayload `json:"message,omitempty"`
}

// MessagePayload is the message body of a messaging event
type MessagePayload struct {
	MID         string              `json:"mid"`
	Text        string              `json:"text,omitempty"`
	IsEcho      bool                `json:"is_echo,omitempty"`
	Attachments []MessageAttachment `json:"attachments,omitempty"`
}

// MessageAttachment is a media attachment on a message
type MessageAttachment struct {
	Type    string `json:"type"`
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

// ParticipantID returns the id of the non-operator party: for an echo the
// operator sent the message, so the participant is the recipient; otherwise
// it is the sender.
func (m MessagingEvent) ParticipantID() string {
	if m.Message != nil && m.Message.IsEcho {
		return m.Recipient.ID
	}
	return m.Sender.ID
}

// SentAt converts the millisecond event timestamp to time.Time
func (m MessagingEvent) SentAt() time.Time {
	if m.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
}
