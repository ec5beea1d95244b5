package user

import "time"

type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Password   string    `json:"-"`
	ProfilePic string    `json:"profilePic"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type SignupRequest struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User
	AccessToken string `json:"accessToken"`
}

// UpdateProfileRequest carries an optional new picture payload (uploaded to
// the media store) and/or a new status line.
type UpdateProfileRequest struct {
	ProfilePic string  `json:"profilePic"`
	Status     *string `json:"status" validate:"omitempty,max=80"`
}

type RequestOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}
