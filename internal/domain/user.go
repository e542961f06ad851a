package domain

import "time"

// User is the profile document stored under users/{id}.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"fullName,omitempty"`
	Role      Role      `json:"role"`
	PushToken string    `json:"pushToken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserInput carries caller supplied profile fields for an upsert. Empty
// fields are left untouched on the stored document.
type UserInput struct {
	Email     string
	FullName  string
	Role      Role
	PushToken string
}
