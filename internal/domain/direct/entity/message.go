package entity

import "time"

// Message represents a direct message, inbound or operator-sent. Operator
// sends carry the delivery channel that ultimately succeeded; inbound
// messages and echoes leave it empty or set to the echoed channel.
type Message struct {
	ID                  string    `json:"id"`
	Text                string    `json:"text,omitempty"`
	AttachmentURL       string    `json:"attachment_url,omitempty"`
	AttachmentType      string    `json:"attachment_type,omitempty"`
	ArchivedURL         string    `json:"archived_url,omitempty"`
	FromMe              bool      `json:"from_me"`
	ParticipantID       string    `json:"participant_id"`
	ParticipantUsername string    `json:"participant_username,omitempty"`
	AccountID           string    `json:"account_id"`
	Channel             string    `json:"channel,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	ReceivedAt          time.Time `json:"received_at"`
}

// MaxMessageLength is the maximum length of a DM text message
const MaxMessageLength = 1000

// ValidateMessageText validates the text for an outbound message
func ValidateMessageText(text string) error {
	if text == "" {
		return ErrEmptyMessage
	}
	if len(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
