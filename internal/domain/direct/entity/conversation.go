package entity

import "time"

// Conversation is a per-participant thread summary, keyed by
// (account id, participant id). Created on the first message in either
// direction, updated on every subsequent one, never deleted.
type Conversation struct {
	AccountID           string     `json:"account_id"`
	ParticipantID       string     `json:"participant_id"`
	ParticipantUsername string     `json:"participant_username,omitempty"`
	LastMessageText     string     `json:"last_message_text,omitempty"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`
	LastMessageIsFromMe bool       `json:"last_message_is_from_me"`
	UnreadCount         int        `json:"unread_count"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
