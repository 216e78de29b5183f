package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Feedback string

const (
	FeedbackNone      Feedback = ""
	FeedbackHelpful   Feedback = "helpful"
	FeedbackUnhelpful Feedback = "unhelpful"
)

// Message is one turn of a conversation log.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mode      Mode      `json:"mode"`
	Style     Style     `json:"style,omitempty"`
	Feedback  Feedback  `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
