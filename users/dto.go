package users

import "time"

// ProfileResponse is the user profile payload.
type ProfileResponse struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Bio       *string   `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateProfileRequest is the payload for PUT /users/me. Pointer fields
// distinguish "not provided" from "set to empty".
type UpdateProfileRequest struct {
	Email *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Bio   *string `json:"bio,omitempty" validate:"omitempty,max=500"`
}
