package group

import (
	"time"

	"murmur/internal/user"
)

// Group invariant: the admin is always part of the member set.
type Group struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ProfilePic  string      `json:"profilePic"`
	AdminID     int64       `json:"adminId"`
	Members     []user.User `json:"members,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type CreateGroupRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"max=500"`
	Members     []int64 `json:"members" validate:"required,min=1"`
	ProfilePic  string  `json:"profilePic"`
}

type AddMembersRequest struct {
	Members []int64 `json:"members" validate:"required,min=1"`
}
