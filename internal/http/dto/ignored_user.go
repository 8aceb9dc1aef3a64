package dto

import (
	"time"

	"situationcord.app/relay/internal/model"
)

type AddIgnoredUserRequest struct {
	UserID    string  `json:"userId" binding:"required"`
	Reason    *string `json:"reason,omitempty"`
	IgnoredBy *string `json:"ignoredBy,omitempty"`
}

type IgnoredUserResponse struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Reason    *string   `json:"reason,omitempty"`
	IgnoredBy *string   `json:"ignoredBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListIgnoredUsersResponse struct {
	Success bool                  `json:"success"`
	Users   []IgnoredUserResponse `json:"users"`
}

func ToIgnoredUserResponse(u model.IgnoredUser) IgnoredUserResponse {
	return IgnoredUserResponse{
		ID:        u.ID,
		UserID:    u.UserID,
		Reason:    u.Reason,
		IgnoredBy: u.IgnoredBy,
		CreatedAt: u.CreatedAt,
	}
}
