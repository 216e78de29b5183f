package models

import "time"

// Session owns one in-memory conversation log and the mode/style the UI
// currently has selected.
type Session struct {
	ID        string    `json:"id"`
	Mode      Mode      `json:"mode"`
	Style     Style     `json:"style"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
