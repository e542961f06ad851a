package dto

import (
	"time"

	"github.com/spec-kit/issue-service/internal/domain"
)

// UserRegisterRequest payload for new users.
type UserRegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserLoginRequest payload for login.
type UserLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateProfileRequest payload.
type UpdateProfileRequest struct {
	FullName string `json:"fullName"`
}

// RegisterDeviceRequest carries the device push token.
type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

// UpdateRoleRequest payload.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
	User      UserResponse `json:"user"`
}

// UserResponse is the public view of a profile. The push token stays
// server side.
type UserResponse struct {
	ID        string      `json:"id"`
	Email     string      `json:"email,omitempty"`
	FullName  string      `json:"fullName,omitempty"`
	Role      domain.Role `json:"role"`
	CreatedAt *time.Time  `json:"createdAt,omitempty"`
}
