package model

import "time"

// IgnoredUser suppresses alerts for every message by the given Discord author.
type IgnoredUser struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Reason    *string   `json:"reason,omitempty"`
	IgnoredBy *string   `json:"ignored_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
